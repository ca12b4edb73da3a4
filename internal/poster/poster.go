// Package poster looks up movie poster images from a TMDB-compatible search
// API. Failures are reported as *PosterFetchError; choosing a fallback image
// is left to the caller.
package poster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/resilience"
)

// Failure reasons carried by PosterFetchError.
const (
	ReasonRequest     = "request"
	ReasonStatus      = "status"
	ReasonDecode      = "decode"
	ReasonNotFound    = "not_found"
	ReasonCircuitOpen = "circuit_open"
	ReasonTimeout     = "timeout"
)

// PosterFetchError explains why no poster URL could be produced for Title.
type PosterFetchError struct {
	Title      string
	Reason     string
	StatusCode int
	Err        error
}

func (e *PosterFetchError) Error() string {
	msg := fmt.Sprintf("fetching poster for %q: %s", e.Title, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PosterFetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrPosterFetch}
	}
	return []error{apperrors.ErrPosterFetch, e.Err}
}

// Fetcher resolves a title to a poster image URL.
type Fetcher interface {
	Fetch(ctx context.Context, title string) (string, error)
}

type searchResponse struct {
	Results []struct {
		Title      string `json:"title"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// Client is a Fetcher backed by HTTP.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	imageBaseURL string
	apiKey       string
	timeout      time.Duration
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records fetch outcomes and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetry overrides the retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = c.newBreaker(cfg) }
}

// New creates a Client from the poster configuration.
func New(cfg config.PosterConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		logger: slog.Default().With("component", "poster-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = c.newBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		})
	}
	return c
}

func (c *Client) newBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	cfg.IsFailure = func(err error) bool {
		var pe *PosterFetchError
		if errors.As(err, &pe) {
			return pe.Reason != ReasonNotFound
		}
		return true
	}
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		if c.metrics != nil {
			c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return resilience.NewCircuitBreaker("poster-api", cfg)
}

// Fetch returns the poster URL of the first search hit for title.
func (c *Client) Fetch(ctx context.Context, title string) (string, error) {
	var posterURL string
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "poster.fetch", c.retry, func() error {
			u, err := c.attempt(ctx, title)
			if err != nil {
				return err
			}
			posterURL = u
			return nil
		})
	})
	if err == nil {
		c.observe("ok")
		return posterURL, nil
	}

	var pe *PosterFetchError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		pe = &PosterFetchError{Title: title, Reason: ReasonCircuitOpen, Err: err}
	case errors.As(err, &pe):
	default:
		pe = &PosterFetchError{Title: title, Reason: ReasonRequest, Err: err}
	}
	c.observe(pe.Reason)
	c.logger.Warn("poster fetch failed", "title", title, "reason", pe.Reason, "error", pe.Err)
	return "", pe
}

func (c *Client) attempt(ctx context.Context, title string) (string, error) {
	var posterURL string
	err := resilience.WithTimeout(ctx, c.timeout, "poster.request", func(ctx context.Context) error {
		q := url.Values{}
		q.Set("api_key", c.apiKey)
		q.Set("query", title)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/movie?"+q.Encode(), nil)
		if err != nil {
			return resilience.Permanent(&PosterFetchError{Title: title, Reason: ReasonRequest, Err: err})
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &PosterFetchError{Title: title, Reason: ReasonRequest, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			return &PosterFetchError{Title: title, Reason: ReasonStatus, StatusCode: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resilience.Permanent(&PosterFetchError{Title: title, Reason: ReasonStatus, StatusCode: resp.StatusCode})
		}

		var body searchResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
			return resilience.Permanent(&PosterFetchError{Title: title, Reason: ReasonDecode, Err: err})
		}
		if len(body.Results) == 0 || body.Results[0].PosterPath == "" {
			return resilience.Permanent(&PosterFetchError{Title: title, Reason: ReasonNotFound})
		}
		posterURL = c.imageBaseURL + body.Results[0].PosterPath
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) {
			// One slow attempt; the next may be quicker.
			return "", &PosterFetchError{Title: title, Reason: ReasonTimeout, Err: err}
		}
		var pe *PosterFetchError
		if !errors.As(err, &pe) {
			return "", &PosterFetchError{Title: title, Reason: ReasonRequest, Err: err}
		}
		return "", err
	}
	return posterURL, nil
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.PosterFetchesTotal.WithLabelValues(outcome).Inc()
	}
}

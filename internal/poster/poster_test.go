package poster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/resilience"
)

func newClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	cfg := config.PosterConfig{
		BaseURL:      srv.URL,
		ImageBaseURL: "https://img.example/w500",
		APIKey:       "k",
		Timeout:      time.Second,
		MaxAttempts:  3,
	}
	opts = append([]Option{WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})}, opts...)
	return New(cfg, opts...), &calls
}

func TestFetch(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "The Dark Knight" || r.URL.Query().Get("api_key") != "k" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"results":[{"title":"The Dark Knight","poster_path":"/dk.jpg"},{"poster_path":"/other.jpg"}]}`)
	})
	got, err := c.Fetch(context.Background(), "The Dark Knight")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "https://img.example/w500/dk.jpg" {
		t.Errorf("Fetch() = %q", got)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		reason    string
		wantCalls int32
	}{
		{
			name:      "no results",
			handler:   func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"results":[]}`) },
			reason:    ReasonNotFound,
			wantCalls: 1,
		},
		{
			name:      "missing poster path",
			handler:   func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"results":[{"title":"x"}]}`) },
			reason:    ReasonNotFound,
			wantCalls: 1,
		},
		{
			name:      "bad json",
			handler:   func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"results":`) },
			reason:    ReasonDecode,
			wantCalls: 1,
		},
		{
			name:      "unauthorized is not retried",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			reason:    ReasonStatus,
			wantCalls: 1,
		},
		{
			name:      "server errors are retried",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			reason:    ReasonStatus,
			wantCalls: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newClient(t, tt.handler)
			_, err := c.Fetch(context.Background(), "Alpha")
			var pe *PosterFetchError
			if !errors.As(err, &pe) {
				t.Fatalf("Fetch() error = %v, want *PosterFetchError", err)
			}
			if pe.Reason != tt.reason || pe.Title != "Alpha" {
				t.Errorf("PosterFetchError = %+v, want reason %s", pe, tt.reason)
			}
			if !errors.Is(err, apperrors.ErrPosterFetch) {
				t.Error("error does not wrap ErrPosterFetch")
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestFetchRecoversAfterTransientError(t *testing.T) {
	var n atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"results":[{"poster_path":"/a.jpg"}]}`)
	})
	got, err := c.Fetch(context.Background(), "Alpha")
	if err != nil || got != "https://img.example/w500/a.jpg" {
		t.Errorf("Fetch() = %q, %v", got, err)
	}
}

func TestCircuitOpens(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	c, calls := newClient(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
		WithMetrics(m),
		WithBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}),
	)
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), "Alpha"); err == nil {
			t.Fatal("Fetch() succeeded against a failing server")
		}
	}
	_, err := c.Fetch(context.Background(), "Alpha")
	var pe *PosterFetchError
	if !errors.As(err, &pe) || pe.Reason != ReasonCircuitOpen {
		t.Fatalf("Fetch() error = %v, want circuit_open", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
	if got := testutil.ToFloat64(m.PosterFetchesTotal.WithLabelValues(ReasonCircuitOpen)); got != 1 {
		t.Errorf("circuit_open outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("poster-api")); got != float64(resilience.StateOpen) {
		t.Errorf("breaker gauge = %v, want open", got)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	c, calls := newClient(t,
		func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"results":[]}`) },
		WithBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute}),
	)
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), "Nope")
		var pe *PosterFetchError
		if !errors.As(err, &pe) || pe.Reason != ReasonNotFound {
			t.Fatalf("Fetch() error = %v, want not_found", err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestFetchUnreachable(t *testing.T) {
	c := New(config.PosterConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}))
	_, err := c.Fetch(context.Background(), "Alpha")
	var pe *PosterFetchError
	if !errors.As(err, &pe) || pe.Reason != ReasonRequest {
		t.Errorf("Fetch() error = %v, want request failure", err)
	}
}

func TestFetchAttemptTimeout(t *testing.T) {
	c, calls := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	c.timeout = 30 * time.Millisecond

	_, err := c.Fetch(context.Background(), "Alpha")
	var pe *PosterFetchError
	if !errors.As(err, &pe) || pe.Reason != ReasonTimeout {
		t.Fatalf("Fetch() error = %v, want timeout", err)
	}
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, apperrors.ErrPosterFetch) {
		t.Errorf("error %v does not match ErrTimeout and ErrPosterFetch", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3 retried attempts", calls.Load())
	}
}

// Package handler exposes the recommender over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/poster"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/middleware"
)

const defaultPosterConcurrency = 4

// Options wires the optional collaborators. Nil fields disable the feature.
type Options struct {
	Cache             *cache.ResultCache
	Posters           poster.Fetcher
	FallbackPosterURL string
	PosterConcurrency int
	Tracker           analytics.Tracker
	Metrics           *metrics.Metrics
	// DefaultK applies when a request omits k. Zero defers to the
	// recommender's default. Values above its MaxK are clamped.
	DefaultK int
}

type Handler struct {
	rec    *recommender.Recommender
	opts   Options
	logger *slog.Logger
}

func New(rec *recommender.Recommender, opts Options) *Handler {
	if opts.DefaultK <= 0 {
		opts.DefaultK = rec.DefaultK()
	}
	opts.DefaultK = min(opts.DefaultK, rec.MaxK())
	if opts.PosterConcurrency <= 0 {
		opts.PosterConcurrency = defaultPosterConcurrency
	}
	return &Handler{
		rec:    rec,
		opts:   opts,
		logger: slog.Default().With("component", "recommend-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/recommend", h.Recommend)
	mux.HandleFunc("GET /api/v1/titles/resolve", h.Resolve)
	mux.HandleFunc("GET /api/v1/model", h.ModelInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type itemResponse struct {
	ranker.Recommendation
	PosterURL   string `json:"poster_url,omitempty"`
	PosterError string `json:"poster_error,omitempty"`
}

type recommendResponse struct {
	Query      string         `json:"query"`
	Match      string         `json:"match"`
	MatchIndex int            `json:"match_index"`
	MatchScore float64        `json:"match_score"`
	CacheHit   bool           `json:"cache_hit"`
	Items      []itemResponse `json:"items"`
}

// Recommend serves GET /api/v1/recommend?title=<q>&k=<n>[&posters=true].
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	title := q.Get("title")
	if strings.TrimSpace(title) == "" {
		h.observeOutcome(metrics.OutcomeInvalid)
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'title' is required"))
		return
	}
	k := h.opts.DefaultK
	if raw := q.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.observeOutcome(metrics.OutcomeInvalid)
			h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be an integer, got %q", raw))
			return
		}
		k = parsed
	}
	withPosters := false
	if raw := q.Get("posters"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			h.observeOutcome(metrics.OutcomeInvalid)
			h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "posters must be a boolean, got %q", raw))
			return
		}
		withPosters = b
	}

	var (
		result   *recommender.Result
		cacheHit bool
		err      error
	)
	cacheStatus := "none"
	if h.opts.Cache != nil {
		result, cacheHit, err = h.opts.Cache.GetOrCompute(ctx, title, k, func() (*recommender.Result, error) {
			return h.rec.Recommend(title, k)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.observeCache(cacheHit)
	} else {
		result, err = h.rec.Recommend(title, k)
	}
	latency := time.Since(start)

	if err != nil {
		outcome := outcomeOf(err)
		h.observeOutcome(outcome)
		switch outcome {
		case metrics.OutcomeNoMatch:
			log.Info("no title matched", "query", title)
			h.track(analytics.RecommendEvent{
				Type:      analytics.EventNoMatch,
				Query:     title,
				K:         k,
				LatencyMs: ms(latency),
				Timestamp: time.Now().UTC(),
				RequestID: middleware.GetRequestID(ctx),
			})
			h.writeNoMatch(w, err, title)
			return
		case metrics.OutcomeInvalid:
			log.Info("invalid recommend request", "query", title, "k", k, "error", err)
		default:
			log.Error("recommendation failed", "query", title, "k", k, "error", err)
		}
		h.writeError(w, err)
		return
	}

	if h.opts.Metrics != nil {
		h.opts.Metrics.RecommendLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.opts.Metrics.RecommendResults.Observe(float64(len(result.Items)))
		h.opts.Metrics.ResolveScore.Observe(result.MatchScore)
	}
	h.observeOutcome(metrics.OutcomeOK)
	log.Info("recommendation served",
		"query", title,
		"match", result.Match,
		"match_score", result.MatchScore,
		"k", k,
		"returned", len(result.Items),
		"cache_hit", cacheHit,
		"latency_ms", ms(latency),
	)
	h.track(analytics.RecommendEvent{
		Type:       analytics.EventRecommend,
		Query:      title,
		Match:      result.Match,
		MatchScore: result.MatchScore,
		K:          k,
		Returned:   len(result.Items),
		LatencyMs:  ms(latency),
		CacheHit:   cacheHit,
		Timestamp:  time.Now().UTC(),
		RequestID:  middleware.GetRequestID(ctx),
	})

	resp := recommendResponse{
		Query:      result.Query,
		Match:      result.Match,
		MatchIndex: result.MatchIndex,
		MatchScore: result.MatchScore,
		CacheHit:   cacheHit,
		Items:      make([]itemResponse, len(result.Items)),
	}
	for i, it := range result.Items {
		resp.Items[i].Recommendation = it
	}
	if withPosters {
		h.attachPosters(ctx, resp.Items)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// attachPosters fills poster_url for every item, falling back to the
// configured image and recording poster_error when a lookup fails.
func (h *Handler) attachPosters(ctx context.Context, items []itemResponse) {
	if h.opts.Posters == nil {
		for i := range items {
			items[i].PosterURL = h.opts.FallbackPosterURL
			items[i].PosterError = "poster lookup disabled"
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(h.opts.PosterConcurrency)
	for i := range items {
		g.Go(func() error {
			u, err := h.opts.Posters.Fetch(ctx, items[i].Title)
			if err != nil {
				items[i].PosterURL = h.opts.FallbackPosterURL
				items[i].PosterError = posterReason(err)
				return nil
			}
			items[i].PosterURL = u
			return nil
		})
	}
	g.Wait()
}

func posterReason(err error) string {
	var pe *poster.PosterFetchError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}

type resolveResponse struct {
	Query string  `json:"query"`
	Match string  `json:"match"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Resolve serves GET /api/v1/titles/resolve?title=<q>.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'title' is required"))
		return
	}
	match, err := h.rec.Resolve(title)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoMatch) {
			h.writeNoMatch(w, err, title)
			return
		}
		logger.FromContext(r.Context()).Error("resolve failed", "query", title, "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resolveResponse{
		Query: title,
		Match: match.Title,
		Index: match.Index,
		Score: match.Score,
	})
}

// ModelInfo serves GET /api/v1/model.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info := h.rec.Model().Info()
	stages := make(map[string]int64, len(info.Stages))
	for name, d := range info.Stages {
		stages[name] = d.Milliseconds()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"source":      info.Source,
		"items":       info.Items,
		"vocabulary":  info.VocabularySize,
		"fingerprint": info.Fingerprint,
		"built_at":    info.BuiltAt,
		"build_ms":    info.BuildDuration.Milliseconds(),
		"stages_ms":   stages,
		"max_k":       h.rec.MaxK(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.opts.Cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "cache_disabled",
			"message": "caching is disabled",
		})
		return
	}

	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(event analytics.RecommendEvent) {
	if h.opts.Tracker != nil {
		h.opts.Tracker.Track(event)
	}
}

func (h *Handler) observeOutcome(outcome string) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecommendTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) observeCache(hit bool) {
	if h.opts.Metrics == nil {
		return
	}
	if hit {
		h.opts.Metrics.CacheHitsTotal.Inc()
	} else {
		h.opts.Metrics.CacheMissesTotal.Inc()
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNoMatch):
		return metrics.OutcomeNoMatch
	case errors.Is(err, apperrors.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, apperrors.ErrEmptyCatalog):
		return metrics.OutcomeEmptyCatalog
	default:
		return metrics.OutcomeError
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError renders err as {"error": code, "message": text} with the status
// its sentinel maps to.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), errorBody(err))
}

// writeNoMatch adds up to three "did you mean" titles under "suggestions"
// when any title loosely resembles query.
func (h *Handler) writeNoMatch(w http.ResponseWriter, err error, query string) {
	body := errorBody(err)
	if s := h.rec.Suggest(query); len(s) > 0 {
		body["suggestions"] = s
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), body)
}

func errorBody(err error) map[string]any {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return map[string]any{
		"error":   apperrors.Code(err),
		"message": msg,
	}
}

package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// Report is the analytics response: the aggregate plus ratios a dashboard
// would otherwise derive itself.
type Report struct {
	Stats
	NoMatchRate  float64 `json:"no_match_rate"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// NewReport trims every ranked list in s to top entries and fills the ratios.
func NewReport(s Stats, top int) Report {
	s.TopQueries = head(s.TopQueries, top)
	s.NoMatchQueries = head(s.NoMatchQueries, top)
	s.TopMatches = head(s.TopMatches, top)

	r := Report{Stats: s}
	if s.TotalRequests > 0 {
		r.NoMatchRate = float64(s.NoMatchCount) / float64(s.TotalRequests)
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		r.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	return r
}

func head(list []QueryCount, n int) []QueryCount {
	if len(list) > n {
		return list[:n]
	}
	return list
}

type Handler struct {
	source interface{ Stats() Stats }
	logger *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		source: aggregator,
		logger: slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics[?top=n]. n bounds each ranked list and
// must be within [1, 10].
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := topListSize
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > topListSize {
			h.write(w, http.StatusBadRequest, map[string]string{
				"error":   apperrors.Code(apperrors.ErrInvalidInput),
				"message": fmt.Sprintf("top must be an integer in [1, %d], got %q", topListSize, raw),
			})
			return
		}
		top = n
	}
	h.write(w, http.StatusOK, NewReport(h.source.Stats(), top))
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

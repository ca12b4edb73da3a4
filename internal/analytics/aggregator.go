package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/kafka"
)

const (
	latencyWindow = 10000
	topListSize   = 10
)

// Stats is a point-in-time view of the aggregated events.
type Stats struct {
	TotalRequests     int64        `json:"total_requests"`
	NoMatchCount      int64        `json:"no_match_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	NoMatchQueries    []QueryCount `json:"no_match_queries"`
	TopMatches        []QueryCount `json:"top_matches"`
	RequestsPerMinute float64      `json:"requests_per_minute"`
	Since             time.Time    `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. Latency percentiles cover
// the most recent events only.
type Aggregator struct {
	mu             sync.RWMutex
	total          int64
	noMatch        int64
	cacheHits      int64
	cacheMisses    int64
	latencies      []float64
	next           int
	queryCounts    map[string]int64
	noMatchQueries map[string]int64
	matchCounts    map[string]int64
	startTime      time.Time
	now            func() time.Time
	logger         *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:      make([]float64, 0, 1024),
		queryCounts:    make(map[string]int64),
		noMatchQueries: make(map[string]int64),
		matchCounts:    make(map[string]int64),
		startTime:      time.Now(),
		now:            time.Now,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records event. It satisfies Tracker so the recommender service can
// aggregate locally without a Kafka round trip.
func (a *Aggregator) Track(event RecommendEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[event.Query]++
	switch event.Type {
	case EventNoMatch:
		a.noMatch++
		a.noMatchQueries[event.Query]++
	default:
		if event.Match != "" {
			a.matchCounts[event.Match]++
		}
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RecommendEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Seed restores counters from a persisted snapshot, so totals survive a
// restart. Only the top lists of the snapshot are known, so per-query counts
// outside them start from zero.
func (a *Aggregator) Seed(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += s.TotalRequests
	a.noMatch += s.NoMatchCount
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range s.NoMatchQueries {
		a.noMatchQueries[q.Query] += q.Count
	}
	for _, q := range s.TopMatches {
		a.matchCounts[q.Query] += q.Count
	}
	if !s.Since.IsZero() && s.Since.Before(a.startTime) {
		a.startTime = s.Since
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalRequests: a.total,
		NoMatchCount:  a.noMatch,
		CacheHits:     a.cacheHits,
		CacheMisses:   a.cacheMisses,
		Since:         a.startTime.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topListSize)
	stats.NoMatchQueries = topN(a.noMatchQueries, topListSize)
	stats.TopMatches = topN(a.matchCounts, topListSize)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}

	return stats
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// topN returns the n highest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

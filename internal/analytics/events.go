// Package analytics records what users ask the recommender for. Events are
// published to Kafka by a Collector and folded into running statistics by
// an Aggregator.
package analytics

import "time"

type EventType string

const (
	EventRecommend EventType = "recommend"
	EventNoMatch   EventType = "no_match"
)

// RecommendEvent describes one answered query. Match and Returned are empty
// for EventNoMatch.
type RecommendEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Match      string    `json:"match,omitempty"`
	MatchScore float64   `json:"match_score,omitempty"`
	K          int       `json:"k"`
	Returned   int       `json:"returned"`
	LatencyMs  float64   `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker accepts events. Implementations must not block the caller.
type Tracker interface {
	Track(event RecommendEvent)
}

// Trackers fans an event out to several trackers.
type Trackers []Tracker

func (ts Trackers) Track(event RecommendEvent) {
	for _, t := range ts {
		t.Track(event)
	}
}

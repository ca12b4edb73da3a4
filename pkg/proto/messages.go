// Package proto defines the message types exchanged over the recommender's
// JSON-over-TCP RPC layer (see pkg/rpc).
package proto

// Method names served by the recommender.
const (
	MethodRecommend = "Recommender.Recommend"
	MethodResolve   = "Recommender.Resolve"
	MethodModelInfo = "Recommender.ModelInfo"
	MethodHealth    = "Recommender.Health"
)

// HealthCheckResponse reports whether the recommender is serving.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING
}

// RecommendRequest is the input to Recommender.Recommend.
type RecommendRequest struct {
	Title string `json:"title"`
	K     int32  `json:"k"`
}

// RecommendResponse is the output of Recommender.Recommend.
type RecommendResponse struct {
	Query      string           `json:"query"`
	Match      string           `json:"match"`
	MatchIndex int32            `json:"match_index"`
	MatchScore float64          `json:"match_score"`
	Items      []Recommendation `json:"items"`
	LatencyMs  float64          `json:"latency_ms"`
}

// Recommendation is one ranked item.
type Recommendation struct {
	Rank  int32   `json:"rank"`
	Index int32   `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// ResolveRequest is the input to Recommender.Resolve.
type ResolveRequest struct {
	Title string `json:"title"`
}

// ResolveResponse is the output of Recommender.Resolve.
type ResolveResponse struct {
	Query string  `json:"query"`
	Match string  `json:"match"`
	Index int32   `json:"index"`
	Score float64 `json:"score"`
}

// ModelInfoResponse describes the served model.
type ModelInfoResponse struct {
	Items          int32  `json:"items"`
	VocabularySize int32  `json:"vocabulary_size"`
	Fingerprint    string `json:"fingerprint"`
	BuiltAt        int64  `json:"built_at"`
	BuildMs        int64  `json:"build_ms"`
}

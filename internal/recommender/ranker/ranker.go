// Package ranker selects the top-K most similar items from a row of the
// similarity matrix.
package ranker

import (
	"container/heap"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// DefaultMaxK bounds k when no explicit bound is configured.
const DefaultMaxK = 50

// Recommendation is one ranked entry. Rank starts at 1.
type Recommendation struct {
	Rank  int     `json:"rank"`
	Index int     `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Scored is an index with its similarity score.
type Scored struct {
	Index int
	Score float64
}

// less orders by score descending, then index ascending.
func (a Scored) less(b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// ValidateK checks 1 <= k <= maxK. maxK <= 0 means DefaultMaxK.
func ValidateK(k, maxK int) error {
	if maxK <= 0 {
		maxK = DefaultMaxK
	}
	if k < 1 || k > maxK {
		return fmt.Errorf("%w: k must be between 1 and %d, got %d", apperrors.ErrInvalidInput, maxK, k)
	}
	return nil
}

// TopK returns the k best entries of row, excluding position self, ordered
// by score descending and index ascending. Fewer than k entries are
// returned when the row is shorter. Selection is O(n log k).
func TopK(row []float64, self, k int) []Scored {
	if k <= 0 {
		return []Scored{}
	}
	h := make(scoredHeap, 0, min(k, len(row))+1)
	for j, score := range row {
		if j == self {
			continue
		}
		s := Scored{Index: j, Score: score}
		if h.Len() < k {
			heap.Push(&h, s)
			continue
		}
		if s.less(h[0]) {
			h[0] = s
			heap.Fix(&h, 0)
		}
	}
	out := make([]Scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Scored)
	}
	return out
}

// Rank turns row self of a matrix into k recommendations. titles supplies
// the title of every index.
func Rank(row []float64, self, k int, titles func(int) string) []Recommendation {
	top := TopK(row, self, k)
	out := make([]Recommendation, len(top))
	for i, s := range top {
		out[i] = Recommendation{
			Rank:  i + 1,
			Index: s.Index,
			Title: titles(s.Index),
			Score: s.Score,
		}
	}
	return out
}

// scoredHeap keeps the worst retained entry at the root.
type scoredHeap []Scored

func (h scoredHeap) Len() int { return len(h) }

func (h scoredHeap) Less(i, j int) bool { return h[j].less(h[i]) }

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x interface{}) {
	*h = append(*h, x.(Scored))
}

func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

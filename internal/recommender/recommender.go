// Package recommender answers "movies like this one" queries against a built
// model: it resolves the query to a catalog title and ranks that title's
// row of the similarity matrix.
package recommender

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/ranker"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/resolver"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// Options configures resolution and result bounds.
type Options struct {
	Resolver resolver.Options
	MaxK     int
	// DefaultK applies when a caller leaves k unset. It is clamped to MaxK.
	DefaultK int
}

const (
	defaultK = 10

	maxSuggestions = 3
	suggestCutoff  = 0.4
)

// OptionsFromConfig converts the resolver and recommend sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Resolver: resolver.Options{
			Threshold: cfg.Resolver.Threshold,
			FoldCase:  cfg.Resolver.FoldCase,
		},
		MaxK:     cfg.Recommend.MaxK,
		DefaultK: cfg.Recommend.DefaultK,
	}
}

// Result is the answer to one query.
type Result struct {
	Query      string                  `json:"query"`
	Match      string                  `json:"match"`
	MatchIndex int                     `json:"match_index"`
	MatchScore float64                 `json:"match_score"`
	Items      []ranker.Recommendation `json:"items"`
}

// Recommender binds a model to a prepared resolver. It holds no mutable
// state and is safe for concurrent use.
type Recommender struct {
	model    *model.Model
	resolver *resolver.Resolver
	opts     Options
	logger   *slog.Logger
}

// New prepares a Recommender for m.
func New(m *model.Model, opts Options) *Recommender {
	if opts.MaxK <= 0 {
		opts.MaxK = ranker.DefaultMaxK
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = defaultK
	}
	opts.DefaultK = min(opts.DefaultK, opts.MaxK)
	return &Recommender{
		model:    m,
		resolver: resolver.New(m.Catalog().Titles(), opts.Resolver),
		opts:     opts,
		logger:   slog.Default().With("component", "recommender"),
	}
}

// Model returns the model the recommender serves.
func (r *Recommender) Model() *model.Model { return r.model }

// MaxK returns the largest accepted k.
func (r *Recommender) MaxK() int { return r.opts.MaxK }

// DefaultK returns the k used when a request does not name one.
func (r *Recommender) DefaultK() int { return r.opts.DefaultK }

// Suggest lists catalog titles loosely resembling query, best first. It
// accepts ratios below the resolver threshold, so it has answers for
// queries Resolve rejects.
func (r *Recommender) Suggest(query string) []string {
	cutoff := min(suggestCutoff, r.resolver.Threshold())
	matches := r.resolver.Candidates(query, maxSuggestions, cutoff)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Title
	}
	return out
}

// Resolve maps query to a catalog title.
func (r *Recommender) Resolve(query string) (resolver.Match, error) {
	if r.model.Len() == 0 {
		return resolver.Match{}, fmt.Errorf("%w: cannot resolve %q", apperrors.ErrEmptyCatalog, query)
	}
	return r.resolver.Resolve(query)
}

// Recommend resolves query and returns the k items most similar to it.
// An empty catalog is reported before resolution is attempted.
func (r *Recommender) Recommend(query string, k int) (*Result, error) {
	if r.model.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot recommend for %q", apperrors.ErrEmptyCatalog, query)
	}
	if err := ranker.ValidateK(k, r.opts.MaxK); err != nil {
		return nil, err
	}
	match, err := r.resolver.Resolve(query)
	if err != nil {
		return nil, err
	}
	items, err := r.RecommendByIndex(match.Index, k)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("recommendation computed",
		"query", query,
		"match", match.Title,
		"match_score", match.Score,
		"results", len(items),
	)
	return &Result{
		Query:      query,
		Match:      match.Title,
		MatchIndex: match.Index,
		MatchScore: match.Score,
		Items:      items,
	}, nil
}

// RecommendByIndex ranks the items most similar to catalog index i.
func (r *Recommender) RecommendByIndex(i, k int) ([]ranker.Recommendation, error) {
	n := r.model.Len()
	if n == 0 {
		return nil, apperrors.ErrEmptyCatalog
	}
	if err := ranker.ValidateK(k, r.opts.MaxK); err != nil {
		return nil, err
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: %d (catalog has %d items)", apperrors.ErrIndexOutOfRange, i, n)
	}
	cat := r.model.Catalog()
	title := func(j int) string {
		it, _ := cat.Item(j)
		return it.Title
	}
	return ranker.Rank(r.model.Matrix().Row(i), i, k, title), nil
}

// Recommend is a one-shot helper using default options. Services that
// answer many queries should keep a Recommender.
func Recommend(m *model.Model, query string, k int) (*Result, error) {
	return New(m, Options{}).Recommend(query, k)
}

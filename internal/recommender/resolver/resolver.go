// Package resolver maps a possibly misspelled query to the closest catalog
// title using the Ratcliff/Obershelp similarity ratio.
package resolver

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// DefaultThreshold is the minimum ratio a title needs to be accepted.
const DefaultThreshold = 0.6

// Options configures matching.
type Options struct {
	// Threshold in (0, 1]. Zero means DefaultThreshold.
	Threshold float64
	// FoldCase compares lowercased strings. Off by default, so "alpha"
	// scores lower against "Alpha" than an exact-case query would.
	FoldCase bool
}

// Match is a resolved title.
type Match struct {
	Index int     `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Resolver holds pre-split titles. It is safe for concurrent use.
type Resolver struct {
	titles []string
	seqs   [][]string
	opts   Options
}

// New prepares a resolver over titles in catalog order.
func New(titles []string, opts Options) *Resolver {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	r := &Resolver{
		titles: append([]string(nil), titles...),
		seqs:   make([][]string, len(titles)),
		opts:   opts,
	}
	for i, t := range titles {
		r.seqs[i] = r.split(t)
	}
	return r
}

// Threshold returns the effective acceptance threshold.
func (r *Resolver) Threshold() float64 { return r.opts.Threshold }

// Len returns the number of candidate titles.
func (r *Resolver) Len() int { return len(r.titles) }

func (r *Resolver) split(s string) []string {
	if r.opts.FoldCase {
		s = strings.ToLower(s)
	}
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, string(c))
	}
	return out
}

// Resolve returns the title with the highest ratio against query, provided
// it reaches the threshold. Ties go to the earliest title in catalog order.
// A blank query, or one with no title at or above the threshold, yields an
// error wrapping apperrors.ErrNoMatch.
func (r *Resolver) Resolve(query string) (Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Match{}, fmt.Errorf("%w: empty query", apperrors.ErrNoMatch)
	}
	matcher := difflib.NewMatcher(nil, r.split(query))

	best := Match{Index: -1}
	for i, seq := range r.seqs {
		matcher.SetSeq1(seq)
		// Each ratio below bounds the next from above; a candidate must
		// reach the threshold and strictly beat the current best.
		if !r.viable(matcher.RealQuickRatio(), best) ||
			!r.viable(matcher.QuickRatio(), best) {
			continue
		}
		score := matcher.Ratio()
		if !r.viable(score, best) {
			continue
		}
		best = Match{Index: i, Title: r.titles[i], Score: score}
		if score == 1 {
			break
		}
	}
	if best.Index < 0 {
		return Match{}, fmt.Errorf("%w: no title close to %q", apperrors.ErrNoMatch, query)
	}
	return best, nil
}

func (r *Resolver) viable(score float64, best Match) bool {
	if score < r.opts.Threshold {
		return false
	}
	return best.Index < 0 || score > best.Score
}

// Candidates returns up to n titles scoring at least cutoff, best first,
// ties in catalog order. A cutoff <= 0 means the resolver threshold.
func (r *Resolver) Candidates(query string, n int, cutoff float64) []Match {
	query = strings.TrimSpace(query)
	if query == "" || n <= 0 {
		return nil
	}
	if cutoff <= 0 {
		cutoff = r.opts.Threshold
	}
	matcher := difflib.NewMatcher(nil, r.split(query))
	var out []Match
	for i, seq := range r.seqs {
		matcher.SetSeq1(seq)
		if matcher.RealQuickRatio() < cutoff || matcher.QuickRatio() < cutoff {
			continue
		}
		if score := matcher.Ratio(); score >= cutoff {
			out = insertMatch(out, Match{Index: i, Title: r.titles[i], Score: score}, n)
		}
	}
	return out
}

// insertMatch keeps out sorted by score desc, index asc, with at most n entries.
func insertMatch(out []Match, m Match, n int) []Match {
	pos := len(out)
	for pos > 0 && out[pos-1].Score < m.Score {
		pos--
	}
	if pos >= n {
		return out
	}
	out = append(out, Match{})
	copy(out[pos+1:], out[pos:])
	out[pos] = m
	if len(out) > n {
		out = out[:n]
	}
	return out
}

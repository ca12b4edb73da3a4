// Package vectorizer turns documents into sparse TF-IDF feature vectors over
// a lexicographically ordered vocabulary.
package vectorizer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// IDF weighting modes.
const (
	IDFSmooth = "smooth" // ln((1+N)/(1+df)) + 1
	IDFPlain  = "plain"  // ln(N/df)
)

// Options configures vectorization.
type Options struct {
	Tokenizer tokenizer.Options `json:"tokenizer"`
	IDF       string            `json:"idf"`
	Normalize bool              `json:"normalize"`
}

// DefaultOptions returns smooth IDF with L2 normalisation.
func DefaultOptions() Options {
	return Options{
		Tokenizer: tokenizer.Options{MinLength: tokenizer.DefaultMinLength},
		IDF:       IDFSmooth,
		Normalize: true,
	}
}

// Validate reports unknown IDF modes.
func (o Options) Validate() error {
	switch o.IDF {
	case IDFSmooth, IDFPlain:
		return nil
	default:
		return fmt.Errorf("%w: unknown idf mode %q", apperrors.ErrInvalidInput, o.IDF)
	}
}

// Vocabulary maps each term to its column. Columns follow the lexicographic
// order of the terms.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Term returns the term at column col.
func (v *Vocabulary) Term(col int) string { return v.terms[col] }

// Column returns the column of term and whether it is known.
func (v *Vocabulary) Column(term string) (int, bool) {
	col, ok := v.index[term]
	return col, ok
}

// Terms returns the vocabulary in column order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Vector is a sparse feature vector. Cols is strictly increasing and
// parallel to Weights.
type Vector struct {
	Cols    []int
	Weights []float64
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, w := range v.Weights {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// IsZero reports whether v has no non-zero weight.
func (v Vector) IsZero() bool {
	for _, w := range v.Weights {
		if w != 0 {
			return false
		}
	}
	return true
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Cols) && j < len(b.Cols) {
		switch {
		case a.Cols[i] == b.Cols[j]:
			sum += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Cols[i] < b.Cols[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Result holds the output of FitTransform.
type Result struct {
	Vocabulary *Vocabulary
	Vectors    []Vector
	IDF        []float64
}

// FitTransform builds the vocabulary over docs and returns one vector per
// document, in document order. Empty documents produce zero vectors.
func FitTransform(ctx context.Context, docs []string, opts Options) (*Result, error) {
	if opts.IDF == "" {
		opts.IDF = IDFSmooth
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tok := tokenizer.New(opts.Tokenizer)

	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		if i%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("tokenizing documents: %w", err)
			}
		}
		c := tok.Counts(doc)
		counts[i] = c
		for term := range c {
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	vocab := &Vocabulary{terms: terms, index: make(map[string]int, len(terms))}
	for col, term := range terms {
		vocab.index[term] = col
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for col, term := range terms {
		d := float64(df[term])
		switch opts.IDF {
		case IDFPlain:
			idf[col] = math.Log(n / d)
		default:
			idf[col] = math.Log((1+n)/(1+d)) + 1
		}
	}

	vectors := make([]Vector, len(docs))
	for i, c := range counts {
		cols := make([]int, 0, len(c))
		for term := range c {
			cols = append(cols, vocab.index[term])
		}
		sort.Ints(cols)
		weights := make([]float64, len(cols))
		for k, col := range cols {
			weights[k] = float64(c[terms[col]]) * idf[col]
		}
		v := Vector{Cols: cols, Weights: weights}
		if opts.Normalize {
			normalize(&v)
		}
		vectors[i] = v
	}

	return &Result{Vocabulary: vocab, Vectors: vectors, IDF: idf}, nil
}

func normalize(v *Vector) {
	norm := v.Norm()
	if norm == 0 {
		return
	}
	for k := range v.Weights {
		v.Weights[k] /= norm
	}
}

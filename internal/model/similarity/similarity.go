// Package similarity computes the dense pairwise cosine similarity matrix of
// a set of sparse feature vectors.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/vectorizer"
)

// Matrix is a square, symmetric similarity matrix stored row major.
// It must not be modified once built.
type Matrix struct {
	n    int
	data []float64
}

// NewMatrix wraps row-major data of an n x n matrix.
func NewMatrix(n int, data []float64) (*Matrix, error) {
	if n < 0 || len(data) != n*n {
		return nil, fmt.Errorf("matrix data has %d values, want %d", len(data), n*n)
	}
	return &Matrix{n: n, data: data}, nil
}

// N returns the number of rows (and columns).
func (m *Matrix) N() int { return m.n }

// At returns entry (i, j).
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.n+j] }

// Row returns row i as a read-only view.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.n : (i+1)*m.n : (i+1)*m.n]
}

// Data returns the backing row-major values as a read-only view.
func (m *Matrix) Data() []float64 { return m.data }

// Options configures Compute.
type Options struct {
	// Workers is the number of goroutines. Zero means runtime.NumCPU().
	Workers int
}

// Compute returns the cosine similarity of every pair of vectors. dims is
// the vocabulary size. Each worker owns rows i with i%workers == w and writes
// both (i, j) and (j, i) for j > i, so no cell is written twice.
func Compute(ctx context.Context, vectors []vectorizer.Vector, dims int, opts Options) (*Matrix, error) {
	logger := slog.Default().With("component", "similarity")
	start := time.Now()

	n := len(vectors)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = v.Norm()
	}
	ix := NewInvertedIndex(vectors, dims)
	data := make([]float64, n*n)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			acc := make([]float64, n)
			seen := make([]bool, n)
			touched := make([]int, 0, 64)
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if norms[i] == 0 {
					continue
				}
				data[i*n+i] = 1
				v := vectors[i]
				for k, col := range v.Cols {
					wi := v.Weights[k]
					if wi == 0 {
						continue
					}
					for _, p := range ix.After(col, i) {
						if !seen[p.Row] {
							seen[p.Row] = true
							touched = append(touched, p.Row)
						}
						acc[p.Row] += wi * p.Weight
					}
				}
				for _, j := range touched {
					s := clamp(acc[j] / (norms[i] * norms[j]))
					data[i*n+j] = s
					data[j*n+i] = s
					acc[j] = 0
					seen[j] = false
				}
				touched = touched[:0]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing similarity matrix: %w", err)
	}

	logger.Debug("similarity matrix computed",
		"items", n,
		"workers", workers,
		"postings", ix.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Matrix{n: n, data: data}, nil
}

func clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}

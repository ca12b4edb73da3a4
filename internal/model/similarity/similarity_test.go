package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/vectorizer"
)

func vectorsFor(t testing.TB, docs []string) ([]vectorizer.Vector, int) {
	t.Helper()
	res, err := vectorizer.FitTransform(context.Background(), docs, vectorizer.DefaultOptions())
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	return res.Vectors, res.Vocabulary.Len()
}

func bruteForce(vectors []vectorizer.Vector) []float64 {
	n := len(vectors)
	out := make([]float64, n*n)
	for i := range vectors {
		for j := range vectors {
			ni, nj := vectors[i].Norm(), vectors[j].Norm()
			if ni == 0 || nj == 0 {
				continue
			}
			out[i*n+j] = vectorizer.Dot(vectors[i], vectors[j]) / (ni * nj)
		}
	}
	return out
}

func TestComputeMatchesBruteForce(t *testing.T) {
	docs := []string{
		"Action X",
		"Action space X",
		"Drama Y",
		"",
		"space opera drama",
		"action action action",
	}
	vectors, dims := vectorsFor(t, docs)
	m, err := Compute(context.Background(), vectors, dims, Options{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := bruteForce(vectors)
	n := len(docs)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if math.Abs(m.At(i, j)-want[i*n+j]) > 1e-12 {
				t.Errorf("At(%d,%d) = %v, want %v", i, j, m.At(i, j), want[i*n+j])
			}
		}
	}
}

func TestMatrixProperties(t *testing.T) {
	docs := []string{"Action X", "Action space X", "", "Drama Y", "Action X"}
	vectors, dims := vectorsFor(t, docs)
	m, err := Compute(context.Background(), vectors, dims, Options{})
	if err != nil {
		t.Fatal(err)
	}
	n := m.N()
	if n != len(docs) {
		t.Fatalf("N() = %d, want %d", n, len(docs))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || v < -1 || v > 1 {
				t.Errorf("At(%d,%d) = %v out of range", i, j, v)
			}
			if v != m.At(j, i) {
				t.Errorf("At(%d,%d) = %v != At(%d,%d) = %v", i, j, v, j, i, m.At(j, i))
			}
		}
	}
	if m.At(0, 0) != 1 {
		t.Errorf("diagonal of non-zero vector = %v, want 1", m.At(0, 0))
	}
	for j := 0; j < n; j++ {
		if m.At(2, j) != 0 {
			t.Errorf("zero vector row At(2,%d) = %v, want 0", j, m.At(2, j))
		}
	}
	if math.Abs(m.At(0, 4)-1) > 1e-12 {
		t.Errorf("identical documents similarity = %v, want 1", m.At(0, 4))
	}
}

func TestWorkerCountDoesNotChangeResult(t *testing.T) {
	docs := randomDocs(120, 42)
	vectors, dims := vectorsFor(t, docs)
	base, err := Compute(context.Background(), vectors, dims, Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range []int{2, 3, 7, 64, 500} {
		m, err := Compute(context.Background(), vectors, dims, Options{Workers: w})
		if err != nil {
			t.Fatal(err)
		}
		for k, v := range base.Data() {
			if math.Float64bits(v) != math.Float64bits(m.Data()[k]) {
				t.Fatalf("workers=%d: cell %d = %v, want %v", w, k, m.Data()[k], v)
			}
		}
	}
}

func TestEmptyInput(t *testing.T) {
	m, err := Compute(context.Background(), nil, 0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if m.N() != 0 || len(m.Data()) != 0 {
		t.Errorf("empty matrix = %d rows, %d values", m.N(), len(m.Data()))
	}
}

func TestComputeCancelled(t *testing.T) {
	vectors, dims := vectorsFor(t, randomDocs(50, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, vectors, dims, Options{Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRowIsView(t *testing.T) {
	m, err := NewMatrix(2, []float64{1, 0.5, 0.5, 1})
	if err != nil {
		t.Fatal(err)
	}
	row := m.Row(1)
	if len(row) != 2 || row[0] != 0.5 || row[1] != 1 {
		t.Errorf("Row(1) = %v", row)
	}
	if cap(row) != 2 {
		t.Errorf("cap(Row(1)) = %d, want 2", cap(row))
	}
	if _, err := NewMatrix(2, []float64{1}); err == nil {
		t.Error("NewMatrix() accepted short data")
	}
}

func TestInvertedIndexAfter(t *testing.T) {
	vectors := []vectorizer.Vector{
		{Cols: []int{0, 1}, Weights: []float64{1, 1}},
		{Cols: []int{1}, Weights: []float64{2}},
		{Cols: []int{0, 1}, Weights: []float64{3, 0}},
	}
	ix := NewInvertedIndex(vectors, 2)
	if got := ix.After(0, 0); len(got) != 1 || got[0].Row != 2 {
		t.Errorf("After(0, 0) = %v", got)
	}
	if got := ix.After(1, -1); len(got) != 2 {
		t.Errorf("After(1, -1) = %v, want rows 0 and 1 (zero weights skipped)", got)
	}
	if ix.Size() != 4 {
		t.Errorf("Size() = %d, want 4", ix.Size())
	}
}

var words = []string{
	"action", "drama", "comedy", "space", "hero", "love", "war", "crime",
	"heist", "robot", "alien", "family", "magic", "ocean", "desert", "city",
}

func randomDocs(n int, seed int64) []string {
	r := rand.New(rand.NewSource(seed))
	docs := make([]string, n)
	for i := range docs {
		k := 1 + r.Intn(6)
		doc := ""
		for w := 0; w < k; w++ {
			doc += words[r.Intn(len(words))] + " "
		}
		docs[i] = doc
	}
	return docs
}

func BenchmarkCompute(b *testing.B) {
	for _, n := range []int{500, 2000} {
		vectors, dims := vectorsFor(b, randomDocs(n, 7))
		b.Run(fmt.Sprintf("items=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Compute(context.Background(), vectors, dims, Options{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

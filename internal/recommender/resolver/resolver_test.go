package resolver

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

var titles = []string{"Alpha", "Beta", "Gamma", "The Dark Knight", "The Dark Knight Rises"}

func TestResolve(t *testing.T) {
	r := New(titles, Options{})
	tests := []struct {
		name      string
		query     string
		wantTitle string
		wantScore float64
	}{
		{"exact", "Alpha", "Alpha", 1},
		{"typo", "Alphaa", "Alpha", 10.0 / 11.0},
		{"surrounding whitespace", "  Beta ", "Beta", 1},
		{"prefers closer title", "The Dark Knight Rise", "The Dark Knight Rises", 40.0 / 41.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := r.Resolve(tt.query)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.query, err)
			}
			if m.Title != tt.wantTitle {
				t.Errorf("Resolve(%q) = %q, want %q", tt.query, m.Title, tt.wantTitle)
			}
			if math.Abs(m.Score-tt.wantScore) > 1e-12 {
				t.Errorf("Resolve(%q) score = %v, want %v", tt.query, m.Score, tt.wantScore)
			}
		})
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(titles, Options{})
	for _, q := range []string{"Zzzzz", "", "   "} {
		if _, err := r.Resolve(q); !errors.Is(err, apperrors.ErrNoMatch) {
			t.Errorf("Resolve(%q) error = %v, want ErrNoMatch", q, err)
		}
	}
	if _, err := New(nil, Options{}).Resolve("Alpha"); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("Resolve on empty catalog error = %v, want ErrNoMatch", err)
	}
}

func TestResolveTieGoesToCatalogOrder(t *testing.T) {
	r := New([]string{"Cab", "Cat", "Cab"}, Options{})
	m, err := r.Resolve("Ca")
	if err != nil {
		t.Fatal(err)
	}
	if m.Index != 0 {
		t.Errorf("Resolve() index = %d, want 0", m.Index)
	}
}

func TestFoldCase(t *testing.T) {
	strict := New([]string{"ALPHA"}, Options{})
	if _, err := strict.Resolve("alpha"); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("case sensitive Resolve error = %v, want ErrNoMatch", err)
	}
	folded := New([]string{"ALPHA"}, Options{FoldCase: true})
	m, err := folded.Resolve("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if m.Title != "ALPHA" || m.Score != 1 {
		t.Errorf("folded Resolve() = %+v, want original title with score 1", m)
	}
}

func TestThreshold(t *testing.T) {
	// "Alp" vs "Alpha": 2*3/8 = 0.75.
	r := New([]string{"Alpha"}, Options{Threshold: 0.8})
	if _, err := r.Resolve("Alp"); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("Resolve() error = %v, want ErrNoMatch above 0.75", err)
	}
	r = New([]string{"Alpha"}, Options{Threshold: 0.75})
	if _, err := r.Resolve("Alp"); err != nil {
		t.Errorf("Resolve() error = %v, want match at exactly the threshold", err)
	}
	if got := New(nil, Options{}).Threshold(); got != DefaultThreshold {
		t.Errorf("Threshold() = %v, want %v", got, DefaultThreshold)
	}
}

func TestCandidates(t *testing.T) {
	r := New(titles, Options{})
	got := r.Candidates("The Dark Knight", 3, 0)
	if len(got) != 2 {
		t.Fatalf("Candidates() = %+v, want 2 matches", got)
	}
	if got[0].Title != "The Dark Knight" || got[1].Title != "The Dark Knight Rises" {
		t.Errorf("Candidates() order = %+v", got)
	}
	if got := r.Candidates("The Dark Knight", 1, 0); len(got) != 1 || got[0].Score != 1 {
		t.Errorf("Candidates(n=1) = %+v", got)
	}
	if got := r.Candidates("", 3, 0); got != nil {
		t.Errorf("Candidates(\"\") = %+v, want nil", got)
	}

	// 10/18 is below the threshold but clears a looser cutoff.
	if _, err := r.Resolve("Alphabet soup"); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Fatalf("Resolve() error = %v, want ErrNoMatch", err)
	}
	loose := r.Candidates("Alphabet soup", 3, 0.4)
	if len(loose) == 0 || loose[0].Title != "Alpha" || math.Abs(loose[0].Score-10.0/18.0) > 1e-12 {
		t.Errorf("Candidates(cutoff=0.4) = %+v, want Alpha first", loose)
	}
	if got := r.Candidates("Alphabet soup", 3, 0); got != nil {
		t.Errorf("Candidates(cutoff=threshold) = %+v, want nil", got)
	}
}

func BenchmarkResolve(b *testing.B) {
	many := make([]string, 0, 5000)
	for i := 0; i < 1000; i++ {
		many = append(many, titles...)
	}
	r := New(many, Options{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve("The Dark Knigt")
	}
}

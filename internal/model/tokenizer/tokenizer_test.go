package tokenizer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestTermsDefault(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "Action Hero", []string{"action", "hero"}},
		{"drops single characters", "a B cd", []string{"cd"}},
		{"splits punctuation", "sci-fi, space!opera", []string{"sci", "fi", "space", "opera"}},
		{"keeps digits", "2001 A Space Odyssey", []string{"2001", "space", "odyssey"}},
		{"keeps stop words by default", "the end of it", []string{"the", "end", "of", "it"}},
		{"keeps duplicates", "go go go", []string{"go", "go", "go"}},
		{"unicode letters", "Amélie Poulain", []string{"amélie", "poulain"}},
		{"empty", "   ", []string{}},
	}
	tok := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Terms(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Terms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTermsOptions(t *testing.T) {
	tok := New(Options{StopWords: true, Stem: true, MinLength: 3})
	got := tok.Terms("The running heroes of it")
	want := []string{"runn", "hero"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}
}

func TestZeroValueTokenizer(t *testing.T) {
	var tok Tokenizer
	got := tok.Terms("a bc")
	if !reflect.DeepEqual(got, []string{"bc"}) {
		t.Errorf("Terms() = %v, want [bc]", got)
	}
}

func TestCounts(t *testing.T) {
	got := New(Options{}).Counts("Action action Drama")
	want := map[string]int{"action": 2, "drama": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Counts() = %v, want %v", got, want)
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"relational": "relate",
		"stories":    "story",
		"jumped":     "jump",
		"cats":       "cat",
		"is":         "is",
	}
	for in, want := range tests {
		if got := stem(in); got != want {
			t.Errorf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}

var sampleDocs = map[string]string{
	"short":  "Action Adventure Fantasy Science_Fiction",
	"medium": "Action Adventure Fantasy Science_Fiction culture clash future space war space colony society Enter the World of Pandora. Sam Worthington Zoe Saldana Sigourney Weaver James Cameron",
	"long": strings.Repeat("Adventure Fantasy Action ocean drug abuse exotic island east india trading company love of one's life "+
		"At the end of the world, the adventure begins. Johnny Depp Orlando Bloom Keira Knightley Gore Verbinski ", 20),
}

func BenchmarkTerms(b *testing.B) {
	for name, text := range sampleDocs {
		for _, opts := range []Options{{}, {StopWords: true, Stem: true}} {
			tok := New(opts)
			b.Run(fmt.Sprintf("%s/stop=%t", name, opts.StopWords), func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for i := 0; i < b.N; i++ {
					_ = tok.Terms(text)
				}
			})
		}
	}
}

func BenchmarkTermsParallel(b *testing.B) {
	text := sampleDocs["medium"]
	tok := New(Options{})
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tok.Terms(text)
		}
	})
}

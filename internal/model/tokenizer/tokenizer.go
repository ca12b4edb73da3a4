// Package tokenizer splits composed documents into terms. It lower-cases
// input and splits on non-alphanumeric boundaries; stop-word removal and a
// simple suffix stemmer are opt-in.
package tokenizer

import (
	"strings"
	"unicode"
)

// DefaultMinLength matches a word pattern of two or more word characters.
const DefaultMinLength = 2

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Options controls term extraction.
type Options struct {
	// MinLength is the minimum token length in runes. Zero means DefaultMinLength.
	MinLength int `json:"min_length"`
	StopWords bool `json:"stop_words"`
	Stem      bool `json:"stem"`
}

// Tokenizer extracts terms from text. The zero value uses default options.
type Tokenizer struct {
	opts Options
}

// New returns a Tokenizer with the given options.
func New(opts Options) *Tokenizer {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	return &Tokenizer{opts: opts}
}

// Options returns the effective options.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Terms breaks text into lowercased terms in order of appearance,
// duplicates included.
func (t *Tokenizer) Terms(text string) []string {
	minLen := t.opts.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if runeCount(word) < minLen {
			continue
		}
		if t.opts.StopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if t.opts.Stem {
			word = stem(word)
			if word == "" {
				continue
			}
		}
		terms = append(terms, word)
	}
	return terms
}

// Counts returns the raw frequency of each term in text.
func (t *Tokenizer) Counts(text string) map[string]int {
	counts := make(map[string]int)
	for _, term := range t.Terms(text) {
		counts[term]++
	}
	return counts
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

var suffixRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

package similarity

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/vectorizer"
)

// Posting is one non-zero weight of a term in a row.
type Posting struct {
	Row    int
	Weight float64
}

// PostingList is sorted by Row.
type PostingList []Posting

// InvertedIndex maps a vocabulary column to the rows that carry it.
type InvertedIndex struct {
	postings []PostingList
}

// NewInvertedIndex indexes vectors by column. dims is the vocabulary size.
// Rows are appended in increasing order so every list is sorted by Row.
func NewInvertedIndex(vectors []vectorizer.Vector, dims int) *InvertedIndex {
	df := make([]int, dims)
	for _, v := range vectors {
		for k, col := range v.Cols {
			if v.Weights[k] != 0 {
				df[col]++
			}
		}
	}
	postings := make([]PostingList, dims)
	for col, n := range df {
		if n > 0 {
			postings[col] = make(PostingList, 0, n)
		}
	}
	for row, v := range vectors {
		for k, col := range v.Cols {
			if w := v.Weights[k]; w != 0 {
				postings[col] = append(postings[col], Posting{Row: row, Weight: w})
			}
		}
	}
	return &InvertedIndex{postings: postings}
}

// After returns the postings of col whose row is greater than row.
func (ix *InvertedIndex) After(col, row int) PostingList {
	list := ix.postings[col]
	start := sort.Search(len(list), func(k int) bool { return list[k].Row > row })
	return list[start:]
}

// Len returns the number of indexed columns.
func (ix *InvertedIndex) Len() int { return len(ix.postings) }

// Size returns the total number of postings.
func (ix *InvertedIndex) Size() int {
	n := 0
	for _, list := range ix.postings {
		n += len(list)
	}
	return n
}

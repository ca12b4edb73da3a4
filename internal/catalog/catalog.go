// Package catalog holds the recommendable items and the loaders that read
// them from tabular sources. Every textual attribute is a defined string once
// loaded; missing values become "".
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// Attribute column names, in composition order.
const (
	ColumnTitle    = "title"
	ColumnGenres   = "genres"
	ColumnKeywords = "keywords"
	ColumnTagline  = "tagline"
	ColumnCast     = "cast"
	ColumnDirector = "director"
)

// AttributeColumns lists the five textual attributes in the fixed order used
// by Compose.
var AttributeColumns = []string{ColumnGenres, ColumnKeywords, ColumnTagline, ColumnCast, ColumnDirector}

// Item is a single recommendable movie. Index is its row position in the
// catalog and in the similarity matrix.
type Item struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Genres   string `json:"genres"`
	Keywords string `json:"keywords"`
	Tagline  string `json:"tagline"`
	Cast     string `json:"cast"`
	Director string `json:"director"`
}

// Attributes returns the five textual attributes in composition order.
func (it Item) Attributes() [5]string {
	return [5]string{it.Genres, it.Keywords, it.Tagline, it.Cast, it.Director}
}

// Catalog is an ordered, index-addressable sequence of items.
type Catalog struct {
	items []Item
}

// New builds a Catalog from items, reassigning Index to the slice position.
func New(items []Item) *Catalog {
	owned := make([]Item, len(items))
	copy(owned, items)
	for i := range owned {
		owned[i].Index = i
	}
	return &Catalog{items: owned}
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Item returns the item at index i.
func (c *Catalog) Item(i int) (Item, error) {
	if i < 0 || i >= len(c.items) {
		return Item{}, fmt.Errorf("%w: %d (catalog has %d items)", apperrors.ErrIndexOutOfRange, i, len(c.items))
	}
	return c.items[i], nil
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Titles returns the titles in catalog order.
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.items))
	for i, it := range c.items {
		titles[i] = it.Title
	}
	return titles
}

// Documents composes every item into its document string.
func (c *Catalog) Documents(sep string) []string {
	docs := make([]string, len(c.items))
	for i, it := range c.items {
		docs[i] = Compose(it, sep)
	}
	return docs
}

// Fingerprint hashes every row so two catalogs with identical content
// produce the same value. extra is mixed in (e.g. vectorizer options).
func (c *Catalog) Fingerprint(extra string) string {
	h := sha256.New()
	for _, it := range c.items {
		fields := [6]string{it.Title, it.Genres, it.Keywords, it.Tagline, it.Cast, it.Director}
		for _, f := range fields {
			fmt.Fprintf(h, "%d:%s", len(f), f)
		}
		h.Write([]byte{'\n'})
	}
	h.Write([]byte(extra))
	return hex.EncodeToString(h.Sum(nil))
}

// Compose concatenates the item's attributes in the fixed order
// {genres, keywords, tagline, cast, director}, inserting sep between every
// pair whether or not an attribute is empty.
func Compose(it Item, sep string) string {
	attrs := it.Attributes()
	return strings.Join(attrs[:], sep)
}

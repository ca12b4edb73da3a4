package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// LoadError reports why a catalog source could not be turned into a
// Catalog. It unwraps to apperrors.ErrLoad and to the underlying cause.
type LoadError struct {
	Source string
	Row    int // 1-based data row, 0 when not row specific
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("loading catalog from %s", e.Source)
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrLoad}
	}
	return []error{apperrors.ErrLoad, e.Err}
}

// Source produces the rows of a catalog.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Catalog, error)
}

// Items is an in-memory Source.
type Items []Item

func (s Items) Name() string { return "memory" }

func (s Items) Load(ctx context.Context) (*Catalog, error) {
	return New(s), nil
}

// CSVSource reads a catalog from a CSV file with a header row.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return s.Path }

func (s CSVSource) Load(ctx context.Context) (*Catalog, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &LoadError{Source: s.Path, Reason: "opening file", Err: err}
	}
	defer f.Close()
	return ParseCSV(ctx, s.Path, f)
}

// ReaderSource reads CSV catalog data from an arbitrary reader.
type ReaderSource struct {
	Label  string
	Reader io.Reader
}

func (s ReaderSource) Name() string {
	if s.Label == "" {
		return "reader"
	}
	return s.Label
}

func (s ReaderSource) Load(ctx context.Context) (*Catalog, error) {
	if s.Reader == nil {
		return nil, &LoadError{Source: s.Name(), Reason: "no reader"}
	}
	return ParseCSV(ctx, s.Name(), s.Reader)
}

// ParseCSV parses CSV catalog data. The header must contain title and the
// five attribute columns (case-insensitive); other columns are ignored.
// Rows with the wrong field count fail the whole load.
func ParseCSV(ctx context.Context, name string, r io.Reader) (*Catalog, error) {
	logger := slog.Default().With("component", "catalog-loader", "source", name)
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: name, Reason: "missing header row"}
		}
		return nil, &LoadError{Source: name, Reason: "reading header", Err: err}
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, &LoadError{Source: name, Reason: err.Error()}
	}

	items := make([]Item, 0, 1024)
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, &LoadError{Source: name, Row: row, Reason: "malformed row", Err: err}
		}
		if row%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &LoadError{Source: name, Row: row, Reason: "cancelled", Err: err}
			}
		}
		items = append(items, Item{
			Index:    len(items),
			Title:    cols.get(record, cols.title),
			Genres:   cols.get(record, cols.attrs[0]),
			Keywords: cols.get(record, cols.attrs[1]),
			Tagline:  cols.get(record, cols.attrs[2]),
			Cast:     cols.get(record, cols.attrs[3]),
			Director: cols.get(record, cols.attrs[4]),
		})
	}
	logger.Info("catalog parsed", "items", len(items))
	return &Catalog{items: items}, nil
}

type columnMap struct {
	title int
	attrs [5]int
}

// get copies the field out of the reused record buffer.
func (m columnMap) get(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.Clone(record[idx])
}

func resolveColumns(header []string) (columnMap, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}
	var m columnMap
	var missing []string
	title, ok := positions[ColumnTitle]
	if !ok {
		missing = append(missing, ColumnTitle)
	}
	m.title = title
	for i, name := range AttributeColumns {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
		}
		m.attrs[i] = pos
	}
	if len(missing) > 0 {
		return columnMap{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

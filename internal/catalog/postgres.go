package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/postgres"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads the catalog from a table holding at least the title
// and the five attribute columns. NULLs load as "".
//
//	CREATE TABLE movies (
//	    id       BIGSERIAL PRIMARY KEY,
//	    title    TEXT NOT NULL,
//	    genres   TEXT,
//	    keywords TEXT,
//	    tagline  TEXT,
//	    "cast"   TEXT,
//	    director TEXT
//	);
type PostgresSource struct {
	Client  *postgres.Client
	Table   string
	OrderBy string
}

func (s PostgresSource) Name() string { return "postgres:" + s.Table }

func (s PostgresSource) Load(ctx context.Context) (*Catalog, error) {
	if s.Client == nil {
		return nil, &LoadError{Source: s.Name(), Reason: "no database client"}
	}
	if !identPattern.MatchString(s.Table) {
		return nil, &LoadError{Source: s.Name(), Reason: fmt.Sprintf("invalid table name %q", s.Table)}
	}
	orderBy := s.OrderBy
	if orderBy == "" {
		orderBy = "id"
	}
	if !identPattern.MatchString(orderBy) {
		return nil, &LoadError{Source: s.Name(), Reason: fmt.Sprintf("invalid order column %q", orderBy)}
	}

	query := fmt.Sprintf(
		`SELECT title, genres, keywords, tagline, "cast", director FROM %s ORDER BY %s`,
		s.Table, orderBy,
	)
	rows, err := s.Client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Reason: "querying catalog", Err: err}
	}
	defer rows.Close()

	items := make([]Item, 0, 1024)
	for rows.Next() {
		var title, genres, keywords, tagline, cast, director sql.NullString
		if err := rows.Scan(&title, &genres, &keywords, &tagline, &cast, &director); err != nil {
			return nil, &LoadError{Source: s.Name(), Row: len(items) + 1, Reason: "scanning row", Err: err}
		}
		items = append(items, Item{
			Index:    len(items),
			Title:    title.String,
			Genres:   genres.String,
			Keywords: keywords.String,
			Tagline:  tagline.String,
			Cast:     cast.String,
			Director: director.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: s.Name(), Reason: "iterating rows", Err: err}
	}
	slog.Default().With("component", "catalog-loader").Info("catalog loaded from postgres",
		"table", s.Table,
		"items", len(items),
	)
	return &Catalog{items: items}, nil
}

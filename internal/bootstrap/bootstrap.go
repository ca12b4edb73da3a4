// Package bootstrap turns configuration into a ready model. It is shared by
// the recommender service and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/snapshot"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/postgres"
)

// Source returns the catalog source named by cfg.Catalog. db is required
// for the postgres source and ignored otherwise.
func Source(cfg *config.Config, db *postgres.Client) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case "csv":
		return catalog.CSVSource{Path: cfg.Catalog.Path}, nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("catalog source postgres needs a database connection")
		}
		return catalog.PostgresSource{Client: db, Table: cfg.Catalog.Table, OrderBy: cfg.Catalog.OrderBy}, nil
	default:
		return nil, fmt.Errorf("catalog source %q cannot be built from rows", cfg.Catalog.Source)
	}
}

// LoadModel restores the configured snapshot or builds a fresh model.
func LoadModel(ctx context.Context, cfg *config.Config, db *postgres.Client) (*model.Model, error) {
	if cfg.Catalog.Source == "snapshot" {
		m, err := snapshot.Read(cfg.Catalog.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot %s: %w", cfg.Catalog.Snapshot, err)
		}
		slog.Info("model restored from snapshot",
			"path", cfg.Catalog.Snapshot,
			"items", m.Len(),
			"fingerprint", m.Fingerprint(),
		)
		return m, nil
	}

	src, err := Source(cfg, db)
	if err != nil {
		return nil, err
	}
	m, err := model.Build(ctx, src, model.OptionsFromConfig(cfg.Model))
	if err != nil {
		return nil, err
	}
	info := m.Info()
	slog.Info("model built",
		"source", info.Source,
		"items", info.Items,
		"vocabulary", info.VocabularySize,
		"fingerprint", info.Fingerprint,
		"duration", info.BuildDuration,
	)
	return m, nil
}

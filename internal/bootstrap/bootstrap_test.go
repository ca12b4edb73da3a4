package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/snapshot"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

const movies = `title,genres,keywords,tagline,cast,director
Alpha,Action,,,,X
Beta,Action,,,,X
Gamma,Drama,,,,Y
`

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.csv")
	if err := os.WriteFile(path, []byte(movies), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadModelFromCSVThenSnapshot(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Path = writeCSV(t)

	built, err := LoadModel(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if built.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", built.Len())
	}

	path, err := snapshot.Write(t.TempDir(), built)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Catalog.Source = "snapshot"
	cfg.Catalog.Snapshot = path
	restored, err := LoadModel(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Fingerprint() != built.Fingerprint() {
		t.Errorf("fingerprint %s != %s", restored.Fingerprint(), built.Fingerprint())
	}
}

func TestLoadModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"missing csv", func(c *config.Config) { c.Catalog.Path = filepath.Join(t.TempDir(), "none.csv") }, apperrors.ErrLoad},
		{"missing snapshot", func(c *config.Config) {
			c.Catalog.Source = "snapshot"
			c.Catalog.Snapshot = filepath.Join(t.TempDir(), "none.cmsnap")
		}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			_, err := LoadModel(context.Background(), cfg, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSourcePostgresNeedsDB(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Source = "postgres"
	if _, err := Source(cfg, nil); err == nil {
		t.Error("Source() without a database succeeded")
	}
}

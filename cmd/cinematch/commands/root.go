// Package commands implements the cinematch CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/postgres"
)

// globals holds the persistent flags and the config they resolve to.
type globals struct {
	configPath string
	logLevel   string
	output     string
	cfg        *config.Config
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   "cinematch",
		Short: "Content-based movie recommendations",
		Long: `cinematch recommends movies that share genres, keywords, tagline,
cast and director with a title you name.

Queries run against a model built from the configured catalog, or against
a running recommender service with --remote.

Examples:
  cinematch recommend "The Dark Knight" -k 5
  cinematch resolve "dark knigt"
  cinematch recommend --remote localhost:9091 "Avatar"
  cinematch snapshot build --out ./snapshots
  cinematch snapshot inspect ./snapshots/model_1a2b3c4d5e6f.cmsnap`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")

	cmd.AddCommand(newRecommendCmd(g))
	cmd.AddCommand(newResolveCmd(g))
	cmd.AddCommand(newSnapshotCmd(g))
	return cmd
}

func (g *globals) init(cmd *cobra.Command) error {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	switch g.output {
	case "table", "json":
	default:
		return fmt.Errorf("--output must be table or json, got %q", g.output)
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	g.cfg = cfg
	slog.SetDefault(logger.New(cmd.ErrOrStderr(), g.logLevel, cfg.Logging.Format))
	return nil
}

// loadModel opens postgres when the catalog needs it and builds the model.
func (g *globals) loadModel(ctx context.Context) (*model.Model, error) {
	var db *postgres.Client
	if g.cfg.Catalog.Source == "postgres" {
		var err error
		db, err = postgres.New(g.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer db.Close()
	}
	return bootstrap.LoadModel(ctx, g.cfg, db)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

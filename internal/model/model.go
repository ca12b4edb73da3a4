// Package model builds the immutable similarity model: a catalog together
// with the pairwise cosine similarity of its composed documents.
//
// Build runs four stages in order (load, compose, vectorize, similarity) and
// never returns a partially built model. A Model is safe for concurrent use
// by any number of readers.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/similarity"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/model/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/tracing"
)

// Build stage names, used for spans and metrics.
const (
	StageLoad       = "load"
	StageCompose    = "compose"
	StageVectorize  = "vectorize"
	StageSimilarity = "similarity"
)

// Options is the feature composition and weighting policy.
type Options struct {
	// Separator joins the attributes of an item. Empty means a single space.
	Separator  string             `json:"separator"`
	Vectorizer vectorizer.Options `json:"vectorizer"`
	// Workers bounds similarity parallelism; it does not affect the result.
	Workers int `json:"-"`
}

// DefaultOptions mirrors the defaults of pkg/config.
func DefaultOptions() Options {
	return Options{
		Separator:  " ",
		Vectorizer: vectorizer.DefaultOptions(),
	}
}

// OptionsFromConfig converts the model section of the configuration.
func OptionsFromConfig(cfg config.ModelConfig) Options {
	return Options{
		Separator: cfg.Separator,
		Vectorizer: vectorizer.Options{
			Tokenizer: tokenizer.Options{
				MinLength: cfg.MinTokenLength,
				StopWords: cfg.StopWords,
				Stem:      cfg.Stem,
			},
			IDF:       cfg.IDF,
			Normalize: cfg.Normalize,
		},
		Workers: cfg.Workers,
	}
}

func (o Options) withDefaults() Options {
	if o.Separator == "" {
		o.Separator = " "
	}
	if o.Vectorizer.IDF == "" {
		o.Vectorizer.IDF = vectorizer.IDFSmooth
	}
	if o.Vectorizer.Tokenizer.MinLength <= 0 {
		o.Vectorizer.Tokenizer.MinLength = tokenizer.DefaultMinLength
	}
	return o
}

// Key renders every option that changes the matrix, for fingerprinting.
func (o Options) Key() string {
	o = o.withDefaults()
	return fmt.Sprintf("sep=%q;idf=%s;min=%d;stop=%t;stem=%t;norm=%t",
		o.Separator,
		o.Vectorizer.IDF,
		o.Vectorizer.Tokenizer.MinLength,
		o.Vectorizer.Tokenizer.StopWords,
		o.Vectorizer.Tokenizer.Stem,
		o.Vectorizer.Normalize,
	)
}

// Info describes how a model was built.
type Info struct {
	Source         string                   `json:"source"`
	Items          int                      `json:"items"`
	VocabularySize int                      `json:"vocabulary_size"`
	Fingerprint    string                   `json:"fingerprint"`
	BuiltAt        time.Time                `json:"built_at"`
	BuildDuration  time.Duration            `json:"build_duration"`
	Stages         map[string]time.Duration `json:"stages,omitempty"`
	Options        Options                  `json:"options"`
}

// Model owns a catalog and its similarity matrix. Row i of the matrix
// belongs to catalog item i.
type Model struct {
	catalog *catalog.Catalog
	matrix  *similarity.Matrix
	info    Info
}

// New assembles a model from parts, e.g. when restoring a snapshot.
func New(cat *catalog.Catalog, m *similarity.Matrix, info Info) (*Model, error) {
	if cat == nil || m == nil {
		return nil, fmt.Errorf("model requires a catalog and a matrix")
	}
	if cat.Len() != m.N() {
		return nil, fmt.Errorf("catalog has %d items but matrix has %d rows", cat.Len(), m.N())
	}
	info.Items = cat.Len()
	if info.Stages == nil {
		info.Stages = map[string]time.Duration{}
	}
	return &Model{catalog: cat, matrix: m, info: info}, nil
}

// Catalog returns the model's catalog.
func (m *Model) Catalog() *catalog.Catalog { return m.catalog }

// Matrix returns the similarity matrix.
func (m *Model) Matrix() *similarity.Matrix { return m.matrix }

// Info returns build metadata.
func (m *Model) Info() Info {
	info := m.info
	info.Stages = make(map[string]time.Duration, len(m.info.Stages))
	for k, v := range m.info.Stages {
		info.Stages[k] = v
	}
	return info
}

// Len returns the number of items.
func (m *Model) Len() int { return m.catalog.Len() }

// Fingerprint identifies the catalog content and options the model was
// built from.
func (m *Model) Fingerprint() string { return m.info.Fingerprint }

// Build loads the catalog from source and computes its similarity matrix.
// Load failures are returned as *catalog.LoadError.
func Build(ctx context.Context, source catalog.Source, opts Options) (*Model, error) {
	opts = opts.withDefaults()
	if err := opts.Vectorizer.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "model-builder", "source", source.Name())
	start := time.Now()

	ctx, root := tracing.StartSpan(ctx, "model.build", "")
	defer func() {
		root.End()
		root.Log(logger, slog.LevelDebug)
	}()

	_, span := tracing.StartChildSpan(ctx, StageLoad)
	cat, err := source.Load(ctx)
	span.End()
	if err != nil {
		return nil, err
	}
	span.SetAttr("items", cat.Len())

	_, span = tracing.StartChildSpan(ctx, StageCompose)
	docs := cat.Documents(opts.Separator)
	span.End()

	_, span = tracing.StartChildSpan(ctx, StageVectorize)
	vec, err := vectorizer.FitTransform(ctx, docs, opts.Vectorizer)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("vectorizing catalog: %w", err)
	}
	span.SetAttr("vocabulary", vec.Vocabulary.Len())

	_, span = tracing.StartChildSpan(ctx, StageSimilarity)
	matrix, err := similarity.Compute(ctx, vec.Vectors, vec.Vocabulary.Len(), similarity.Options{Workers: opts.Workers})
	span.End()
	if err != nil {
		return nil, err
	}

	info := Info{
		Source:         source.Name(),
		Items:          cat.Len(),
		VocabularySize: vec.Vocabulary.Len(),
		Fingerprint:    cat.Fingerprint(opts.Key()),
		BuiltAt:        time.Now().UTC(),
		BuildDuration:  time.Since(start),
		Stages:         root.Durations(),
		Options:        opts,
	}
	logger.Info("model built",
		"items", info.Items,
		"vocabulary", info.VocabularySize,
		"fingerprint", info.Fingerprint[:12],
		"duration_ms", info.BuildDuration.Milliseconds(),
	)
	return &Model{catalog: cat, matrix: matrix, info: info}, nil
}

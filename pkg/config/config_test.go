package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resolver.Threshold != 0.6 {
		t.Errorf("Resolver.Threshold = %g, want 0.6", cfg.Resolver.Threshold)
	}
	if cfg.Model.Separator != " " {
		t.Errorf("Model.Separator = %q, want single space", cfg.Model.Separator)
	}
	if cfg.Recommend.DefaultK != 10 || cfg.Recommend.MaxK != 50 {
		t.Errorf("Recommend = %+v, want defaultK 10 maxK 50", cfg.Recommend)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := []byte(`
server:
  port: 9999
resolver:
  threshold: 0.75
model:
  idf: plain
redis:
  cacheTTL: 30s
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CM_SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Resolver.Threshold != 0.75 {
		t.Errorf("Resolver.Threshold = %g, want 0.75", cfg.Resolver.Threshold)
	}
	if cfg.Model.IDF != "plain" {
		t.Errorf("Model.IDF = %q, want plain", cfg.Model.IDF)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("Redis.CacheTTL = %v, want 30s", cfg.Redis.CacheTTL)
	}
	if cfg.Model.MinTokenLength != 2 {
		t.Errorf("Model.MinTokenLength = %d, want default 2 kept", cfg.Model.MinTokenLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"threshold zero", func(c *Config) { c.Resolver.Threshold = 0 }, true},
		{"threshold above one", func(c *Config) { c.Resolver.Threshold = 1.2 }, true},
		{"default k above max", func(c *Config) { c.Recommend.DefaultK = 51 }, true},
		{"unknown idf", func(c *Config) { c.Model.IDF = "bm25" }, true},
		{"unknown source", func(c *Config) { c.Catalog.Source = "s3" }, true},
		{"postgres source without postgres", func(c *Config) { c.Catalog.Source = "postgres" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() on missing file returned nil error")
	}
}

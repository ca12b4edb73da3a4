package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, time.Millisecond},
		{50, 50 * time.Millisecond},
		{90, 90 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %v", got)
	}
}

func TestStatsReport(t *testing.T) {
	s := NewStats()
	s.Record(10*time.Millisecond, 200, true)
	s.Record(30*time.Millisecond, 200, false)
	s.Record(20*time.Millisecond, 404, false)
	s.Record(5*time.Millisecond, 429, false)
	s.Record(0, 0, false)

	r := s.Report(time.Second)
	if r.Total != 5 || r.Success != 2 || r.NoMatch != 1 || r.RateLimited != 1 || r.Failed != 1 || r.CacheHits != 1 {
		t.Errorf("report counts = %+v", r)
	}
	if r.Min != 5*time.Millisecond || r.Max != 30*time.Millisecond {
		t.Errorf("min/max = %v/%v", r.Min, r.Max)
	}
	if r.StatusCodes[200] != 2 || r.StatusCodes[0] != 0 {
		t.Errorf("status codes = %v", r.StatusCodes)
	}
	if r.RPS != 5 {
		t.Errorf("RPS = %v, want 5", r.RPS)
	}

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "Cache hit rate:  50.0%") {
		t.Errorf("report output:\n%s", buf.String())
	}
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/recommend" || r.URL.Query().Get("k") != "3" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("title") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cache_hit":true,"items":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stats := Run(ctx, srv.Client().Transport, Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		K:           3,
		Titles:      []string{"Avatar", "missing"},
	})
	r := stats.Report(200 * time.Millisecond)
	if r.Success == 0 || r.NoMatch == 0 {
		t.Fatalf("report = %+v, want both successes and no-matches", r)
	}
	if r.Failed != 0 {
		t.Errorf("failed = %d, want 0", r.Failed)
	}
	if r.CacheHits != r.Success {
		t.Errorf("cache hits = %d, want %d", r.CacheHits, r.Success)
	}
}

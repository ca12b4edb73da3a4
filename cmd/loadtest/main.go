// Command loadtest drives concurrent GET /api/v1/recommend traffic against a
// running recommender and prints latency, status and cache statistics.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -titles data/movies.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/catalog"
)

var defaultTitles = []string{
	"Avatar",
	"The Dark Knight",
	"the dark knigt",
	"Pirates of the Caribbean: At World's End",
	"Spectre",
	"John Carter",
	"Spider-Man 3",
	"Tangled",
	"Avengers: Age of Ultron",
	"Inception",
	"Interstellar",
	"not a real movie at all",
}

// Config describes one load test run.
type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	K           int
	Titles      []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the recommender service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	k := flag.Int("k", 10, "recommendations per request")
	titlesPath := flag.String("titles", "", "catalog CSV to draw query titles from (default: built-in list)")
	flag.Parse()

	titles := defaultTitles
	if *titlesPath != "" {
		cat, err := catalog.CSVSource{Path: *titlesPath}.Load(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading titles: %v\n", err)
			os.Exit(1)
		}
		if cat.Len() == 0 {
			fmt.Fprintln(os.Stderr, "catalog has no titles")
			os.Exit(1)
		}
		titles = cat.Titles()
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		K:           *k,
		Titles:      titles,
	}

	fmt.Println("=== CineMatch Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Titles:      %d unique\n", len(cfg.Titles))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	start := time.Now()
	stats := Run(ctx, http.DefaultTransport, cfg)
	report := stats.Report(time.Since(start))
	report.Print(os.Stdout)

	if report.Total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// Run issues requests from cfg.Concurrency workers until ctx is done.
func Run(ctx context.Context, transport http.RoundTripper, cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{Timeout: 10 * time.Second, Transport: transport}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				title := cfg.Titles[next%len(cfg.Titles)]
				next++
				d, status, hit := recommendOnce(ctx, client, cfg, title)
				if ctx.Err() != nil && status == 0 {
					// cut off by the deadline, not a failure
					return
				}
				stats.Record(d, status, hit)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func recommendOnce(ctx context.Context, client *http.Client, cfg Config, title string) (time.Duration, int, bool) {
	u := fmt.Sprintf("%s/api/v1/recommend?title=%s&k=%d", cfg.BaseURL, url.QueryEscape(title), cfg.K)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, false
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, false
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	return time.Since(start), resp.StatusCode, body.CacheHit
}

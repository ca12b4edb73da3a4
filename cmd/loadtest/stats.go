package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates results from concurrent workers.
type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	noMatch   atomic.Int64
	limited   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

// Record classifies one response. status 0 means a transport error.
func (s *Stats) Record(d time.Duration, status int, cacheHit bool) {
	s.total.Add(1)
	switch {
	case status == 0:
		s.failed.Add(1)
		return
	case status >= 200 && status < 300:
		s.success.Add(1)
		if cacheHit {
			s.cacheHits.Add(1)
		}
	case status == 404:
		s.noMatch.Add(1)
	case status == 429:
		s.limited.Add(1)
	default:
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

// Report is a summary of a finished run.
type Report struct {
	Total, Success, NoMatch, RateLimited, Failed, CacheHits int64

	RPS                          float64
	Min, Avg, P50, P90, P99, Max time.Duration
	StdDev                       time.Duration
	StatusCodes                  map[int]int64
}

func (s *Stats) Report(elapsed time.Duration) Report {
	r := Report{
		Total:       s.total.Load(),
		Success:     s.success.Load(),
		NoMatch:     s.noMatch.Load(),
		RateLimited: s.limited.Load(),
		Failed:      s.failed.Load(),
		CacheHits:   s.cacheHits.Load(),
		StatusCodes: make(map[int]int64),
	}
	if elapsed > 0 {
		r.RPS = float64(r.Total) / elapsed.Seconds()
	}

	s.mu.Lock()
	lat := append([]time.Duration(nil), s.latencies...)
	for code, n := range s.codes {
		r.StatusCodes[code] = n
	}
	s.mu.Unlock()

	if len(lat) == 0 {
		return r
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	r.Min, r.Max = lat[0], lat[len(lat)-1]
	r.Avg = sum / time.Duration(len(lat))
	r.P50 = percentile(lat, 50)
	r.P90 = percentile(lat, 90)
	r.P99 = percentile(lat, 99)

	var sq float64
	for _, l := range lat {
		diff := float64(l - r.Avg)
		sq += diff * diff
	}
	r.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	return r
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "No match (404):  %d\n", r.NoMatch)
	fmt.Fprintf(w, "Rate limited:    %d\n", r.RateLimited)
	fmt.Fprintf(w, "Failed:          %d\n", r.Failed)
	if r.Success > 0 {
		fmt.Fprintf(w, "Cache hit rate:  %.1f%%\n", float64(r.CacheHits)/float64(r.Success)*100)
	}
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)

	if r.Max > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
}

// Command loadtest drives GET /api/v1/plans/{days} with a fixed set of day
// counts and reports throughput, latency percentiles and the cache hit rate.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Days        []int
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the planner service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	daysFlag := flag.String("days", "7,14,30,40,50,90,100,180,200,365", "comma-separated day counts to request")
	flag.Parse()

	days, err := parseDays(*daysFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -days: %v\n", err)
		os.Exit(2)
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Days:        days,
	}

	fmt.Println("=== Reading Planner Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Day counts:  %d unique\n", len(cfg.Days))
	fmt.Println()

	stats := runLoadTest(cfg)
	if ok := printReport(os.Stdout, stats, cfg.Duration); !ok {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func parseDays(raw string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%q is not a positive integer", part)
		}
		days = append(days, n)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no day counts given")
	}
	return days, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			next := workerID
			for ctx.Err() == nil {
				days := cfg.Days[next%len(cfg.Days)]
				next++
				doRequest(ctx, client, cfg.BaseURL, days, stats)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func doRequest(ctx context.Context, client *http.Client, baseURL string, days int, stats *Stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/plans/%d", baseURL, days), nil)
	if err != nil {
		stats.Record(0, 0, false, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			stats.Record(time.Since(start), 0, false, err)
		}
		return
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	stats.Record(time.Since(start), resp.StatusCode, body.CacheHit, nil)
}

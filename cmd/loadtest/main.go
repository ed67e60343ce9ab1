// Command loadtest drives GET /api/v1/search with structured queries,
// rotating through retrieval models, and reports latency per model.
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
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/searcher/executor"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Models      []string
	Queries     []string
}

var defaultQueries = []string{
	"obama family tree",
	"#and(white house)",
	"#or(dog cat)",
	"#near/1(white house)",
	"#window/8(obama.title family)",
	"#wand(0.7 obama 0.3 #near/2(white house))",
	"#wsum(0.5 dog.title 0.5 dog.body)",
	"#sum(training barking)",
	"president.keywords obama",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results per request")
	models := flag.String("models", "bm25,indri,rankedboolean", "comma-separated retrieval models to rotate through")
	queryFile := flag.String("queries", "", "qid:query file (default: built-in queries)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := loadQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Models:      splitModels(*models),
		Queries:     queries,
	}
	if len(cfg.Queries) == 0 || len(cfg.Models) == 0 {
		fmt.Fprintln(os.Stderr, "need at least one query and one model")
		os.Exit(1)
	}

	fmt.Println("=== qryeval Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Models:      %s\n", strings.Join(cfg.Models, ", "))
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(stats.Summaries(), cfg.Duration) {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	parsed, err := executor.ReadQueries(f)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(parsed))
	for i, q := range parsed {
		out[i] = q.Text
	}
	return out, nil
}

func splitModels(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func searchURL(cfg Config, query, model string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("model", model)
	v.Set("limit", fmt.Sprint(cfg.Limit))
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
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

	fmt.Print("Running")
	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				model := cfg.Models[(i/len(cfg.Queries))%len(cfg.Models)]
				issue(ctx, client, stats, searchURL(cfg, query, model), model)
			}
			return nil
		})
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

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// issue sends one search. Requests cut short by the end of the run are not
// recorded.
func issue(ctx context.Context, client *http.Client, stats *Stats, rawURL, model string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.Record(model, elapsed, 0, 0)
		}
		return
	}
	defer resp.Body.Close()

	var body struct {
		TotalHits int `json:"total_hits"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			stats.Record(model, elapsed, 0, 0)
			return
		}
	}
	io.Copy(io.Discard, resp.Body)
	stats.Record(model, elapsed, resp.StatusCode, body.TotalHits)
}

func printReport(summaries []Summary, duration time.Duration) bool {
	var total int64
	for _, s := range summaries {
		total += s.Requests
		fmt.Printf("=== %s ===\n", s.Model)
		fmt.Printf("Requests:     %d\n", s.Requests)
		fmt.Printf("Errors:       %d\n", s.Errors)
		fmt.Printf("Zero results: %d\n", s.ZeroResults)
		if s.Requests > 0 {
			fmt.Printf("Error Rate:   %.2f%%\n", float64(s.Errors)/float64(s.Requests)*100)
			fmt.Printf("Requests/sec: %.2f\n", float64(s.Requests)/duration.Seconds())
		}
		fmt.Printf("Latency min/avg/max: %s / %s / %s\n", s.Min, s.Avg, s.Max)
		fmt.Printf("Latency p50/p90/p99: %s / %s / %s\n", s.P50, s.P90, s.P99)
		fmt.Printf("StdDev: %s\n", s.StdDev)

		codes := make([]int, 0, len(s.StatusCodes))
		for code := range s.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Printf("  %d: %d\n", code, s.StatusCodes[code])
		}
		fmt.Println()
	}
	return total > 0
}

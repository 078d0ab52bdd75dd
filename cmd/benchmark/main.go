package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"resumerag/config"
	"resumerag/internal/adapter/embedding"
	"resumerag/internal/app"
	"resumerag/internal/domain"
	"resumerag/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding rag.yaml and the store")
	query := flag.String("q", "", "Single query to test")
	queryFile := flag.String("f", "", "File with one query per line")
	runs := flag.Int("n", 1, "Times to run each query")
	flag.Parse()

	queries, err := loadQueries(*query, *queryFile)
	if err != nil || len(queries) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -q \"query\" | -f queries.txt [-n 5]")
		fmt.Println("\nReports per query:")
		fmt.Println("  1. Retrieval latency (embedding + search + packing)")
		fmt.Println("  2. Packed passage count and budget use")
		fmt.Println("  3. Mean and top-1 similarity")
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.RateLimit.Enabled = false

	a, err := app.Open(cfg, *dir, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	stats, err := a.Store.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading index: %v\n", err)
		os.Exit(1)
	}
	if stats.Chunks == 0 {
		fmt.Fprintln(os.Stderr, "No chunks indexed - run 'resumerag ingest' first")
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d, chunks: %d\n", stats.Documents, stats.Chunks)
	fmt.Printf("Model: %s (%s), dimension %d\n", a.Embedder.ModelName(), cfg.Embedding.Provider, a.Embedder.Dimension())
	fmt.Printf("Budget: %d chars\n\n", cfg.Retrieve.MaxContextChars)

	retriever := a.Retriever()
	cache, _ := a.QueryEmbedder.(*embedding.CachedEmbedder)
	var totalLatency time.Duration
	var totalMean float64
	measured := 0

	for _, q := range queries {
		// Each query starts cold so the first run pays for the embedding call.
		if cache != nil {
			cache.Invalidate()
		}

		var (
			packed  domain.PackedContext
			elapsed time.Duration
			cold    time.Duration
		)
		for i := 0; i < *runs; i++ {
			start := time.Now()
			packed, err = retriever.Context(context.Background(), nil, q, "")
			took := time.Since(start)
			if i == 0 {
				cold = took
			}
			elapsed += took
			if err != nil {
				break
			}
		}
		if err != nil {
			fmt.Printf("%-40s ERROR %v\n", truncate(q, 40), err)
			continue
		}

		latency := elapsed / time.Duration(*runs)
		mean, top := similarity(packed.Chunks)
		totalLatency += latency
		totalMean += mean
		measured++

		fmt.Printf("Query: %q\n", q)
		fmt.Printf("  latency %-8s passages %-3d chars %d/%d  mean %.3f  top-1 %.3f  [%s]\n\n",
			latency.Round(time.Millisecond), len(packed.Chunks), packed.UsedChars, packed.BudgetChars,
			mean, top, rating(mean))
		if *runs > 1 {
			fmt.Printf("  cold    %s\n\n", cold.Round(time.Millisecond))
		}
	}

	if measured == 0 {
		os.Exit(1)
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS (%d queries):\n", measured)
	fmt.Printf("  Average latency:    %s\n", (totalLatency / time.Duration(measured)).Round(time.Millisecond))
	fmt.Printf("  Average similarity: %.3f\n", totalMean/float64(measured))
	if line := cacheSummary(a.QueryEmbedder); line != "" {
		fmt.Printf("  %s\n", line)
	}
}

func loadQueries(q, path string) ([]string, error) {
	var queries []string
	if q != "" {
		queries = append(queries, q)
	}
	if path == "" {
		return queries, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			queries = append(queries, line)
		}
	}
	return queries, sc.Err()
}

// cacheSummary reports query cache effectiveness, or "" when the query
// embedder is not cached.
func cacheSummary(emb port.Embedder) string {
	cache, ok := emb.(*embedding.CachedEmbedder)
	if !ok {
		return ""
	}
	hits, misses := cache.Counters()
	total := hits + misses
	if total == 0 {
		return "Query cache:        no lookups"
	}
	return fmt.Sprintf("Query cache:        %d hits, %d misses (%.0f%% hit rate)",
		hits, misses, 100*float64(hits)/float64(total))
}

func similarity(chunks []domain.RetrievedChunk) (mean, top float64) {
	if len(chunks) == 0 {
		return 0, 0
	}
	for _, c := range chunks {
		mean += c.Similarity
	}
	return mean / float64(len(chunks)), chunks[0].Similarity
}

func rating(s float64) string {
	switch {
	case s > 0.7:
		return "HIGH"
	case s > 0.5:
		return "GOOD"
	case s > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

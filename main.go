package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"keyword-harvester/pkg/aggregator"
	"keyword-harvester/pkg/expansion"
	"keyword-harvester/pkg/harvester"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/storage"
	"keyword-harvester/pkg/suggest"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns environment variable as duration or default
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	cancel()

	switch {
	case errors.Is(err, flag.ErrHelp):
	case err != nil:
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// run executes one aggregation. Every resource it opens is released before
// it returns, so callers exit only after run is done.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("keyword-harvester", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		keyword  = fs.String("keyword", getEnvOrDefault("KEYWORD", ""), "Seed keyword (env: KEYWORD)")
		country  = fs.String("country", getEnvOrDefault("COUNTRY", "us"), "Country code (env: COUNTRY)")
		language = fs.String("language", getEnvOrDefault("LANGUAGE", "en"), "Language code (env: LANGUAGE)")
		workers  = fs.Int("workers", getEnvIntOrDefault("HARVESTER_WORKERS", 8), "Concurrent lookups (env: HARVESTER_WORKERS)")
		client   = fs.String("client", getEnvOrDefault("SUGGEST_CLIENT", suggest.DefaultClient), "Client tag: chrome, firefox or toolbar (env: SUGGEST_CLIENT)")
		endpoint = fs.String("endpoint", getEnvOrDefault("SUGGEST_ENDPOINT", suggest.DefaultEndpoint), "Autocomplete endpoint (env: SUGGEST_ENDPOINT)")
		timeout  = fs.Duration("timeout", getEnvDurationOrDefault("SUGGEST_TIMEOUT", suggest.DefaultTimeout), "Per-lookup timeout (env: SUGGEST_TIMEOUT)")
		temporal = fs.String("temporal", getEnvOrDefault("TEMPORAL_POLICY", string(expansion.DefaultTemporalPolicy)), "Temporal variants: current or full (env: TEMPORAL_POLICY)")
		csvPath  = fs.String("csv", getEnvOrDefault("CSV_OUTPUT", ""), "Write results CSV to this file or directory (env: CSV_OUTPUT)")
		logFile  = fs.String("log-file", getEnvOrDefault("SEARCH_LOG_FILE", ""), "Append the run record to this JSON-lines file (env: SEARCH_LOG_FILE)")
		debug    = fs.Bool("debug", getEnvBoolOrDefault("DEBUG", false), "Enable debug logging (env: DEBUG)")
		quiet    = fs.Bool("quiet", false, "Print only the summary")
		help     = fs.Bool("help", false, "Show help message")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
		}
		return err
	}

	if *help {
		printUsage(stdout)
		return flag.ErrHelp
	}

	if *keyword == "" && fs.NArg() > 0 {
		*keyword = fs.Arg(0)
	}
	if *keyword == "" {
		printUsage(stdout)
		return errors.New("a keyword is required: use -keyword, KEYWORD or pass it as the first argument")
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	logger.SetLogger(logger.New(logger.Config{Level: level, Format: "console", Output: "stderr"}))
	log := logger.GetLogger().WithField("component", "main")

	var sink storage.LogSink = storage.NewMemoryStorage()
	if *logFile != "" {
		fileSink, err := storage.NewFileStorage(*logFile, 0)
		if err != nil {
			return fmt.Errorf("failed to open search log file: %w", err)
		}
		sink = fileSink
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.WithError(err).Warn("Failed to close search log")
		}
	}()

	pipeline, err := harvester.NewBuilder().
		WithSuggest(suggest.Config{
			Endpoint:  *endpoint,
			Client:    *client,
			Timeout:   *timeout,
			UserAgent: suggest.DefaultUserAgent,
		}).
		WithAggregator(aggregator.Config{
			Workers:        *workers,
			TaskTimeout:    *timeout,
			TemporalPolicy: *temporal,
			SinkTimeout:    5 * time.Second,
			KeyPrefix:      storage.DefaultKeyPrefix,
		}).
		WithSink(sink).
		Build()
	if err != nil {
		return err
	}

	startTime := time.Now()
	resp, err := pipeline.Aggregator.Aggregate(ctx, aggregator.Request{
		Keyword:  *keyword,
		Country:  *country,
		Language: *language,
	})
	if err != nil {
		return err
	}
	pipeline.Aggregator.Wait()
	duration := time.Since(startTime)

	fmt.Fprintf(stdout, "\n=== Suggestions for %q (%s/%s) ===\n", *keyword, *language, *country)
	fmt.Fprintf(stdout, "Unique suggestions: %d\n", resp.Total)
	fmt.Fprintf(stdout, "Duration: %s\n", duration.Round(time.Millisecond))
	for _, s := range resp.Summary {
		fmt.Fprintf(stdout, "  %-10s %d\n", s.Category, s.Count)
	}

	if !*quiet && resp.Total > 0 {
		fmt.Fprintf(stdout, "\n=== Results ===\n")
		for _, item := range resp.Results {
			fmt.Fprintf(stdout, "[%s] %s\n", item.Category, item.Suggestion)
		}
	}

	if *csvPath != "" {
		path, err := writeResults(*csvPath, *keyword, resp)
		if err != nil {
			return fmt.Errorf("failed to write results CSV: %w", err)
		}
		fmt.Fprintf(stdout, "\nResults written to %s\n", path)
	}
	return nil
}

// writeResults writes the CSV to target, or into target when it is a directory
func writeResults(target, keyword string, resp *aggregator.Response) (string, error) {
	path := target
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		path = filepath.Join(target, storage.ResultsFilename(keyword, time.Now()))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := storage.WriteResultsCSV(f, resp.Rows()); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Keyword Harvester - autocomplete keyword expansion")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    ./keyword-harvester -keyword <KEYWORD> [OPTIONS]")
	fmt.Fprintln(w, "    ./keyword-harvester <KEYWORD>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "    -keyword string    Seed keyword (env: KEYWORD)")
	fmt.Fprintln(w, "    -country string    Country code (default: us, env: COUNTRY)")
	fmt.Fprintln(w, "    -language string   Language code (default: en, env: LANGUAGE)")
	fmt.Fprintln(w, "    -workers int       Concurrent lookups (default: 8, env: HARVESTER_WORKERS)")
	fmt.Fprintln(w, "    -client string     chrome, firefox or toolbar (default: chrome, env: SUGGEST_CLIENT)")
	fmt.Fprintln(w, "    -endpoint string   Autocomplete endpoint (env: SUGGEST_ENDPOINT)")
	fmt.Fprintln(w, "    -timeout duration  Per-lookup timeout (default: 10s, env: SUGGEST_TIMEOUT)")
	fmt.Fprintln(w, "    -temporal string   current or full (default: current, env: TEMPORAL_POLICY)")
	fmt.Fprintln(w, "    -csv string        Results CSV file or directory (env: CSV_OUTPUT)")
	fmt.Fprintln(w, "    -log-file string   JSON-lines search log (env: SEARCH_LOG_FILE)")
	fmt.Fprintln(w, "    -debug             Enable debug logging (env: DEBUG)")
	fmt.Fprintln(w, "    -quiet             Print only the summary")
	fmt.Fprintln(w, "    -help              Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "    ./keyword-harvester -keyword pizza -country pr -language es")
	fmt.Fprintln(w, "    ./keyword-harvester -keyword café -language es-419 -csv ./out")
	fmt.Fprintln(w, "    ./keyword-harvester -keyword pizza -client toolbar -temporal full")
}

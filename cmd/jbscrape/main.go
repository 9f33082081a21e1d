package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/jbscrape/browser"
	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/pipeline"
	"github.com/aluiziolira/jbscrape/report"
	"github.com/aluiziolira/jbscrape/scraper"
	"github.com/aluiziolira/jbscrape/storage"
)

type options struct {
	cfg        *config.Config
	browser    browser.Config
	rawMajors  string
	rawSources string
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, level := newLogger(opts.cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := run(opts); err != nil {
		slog.Error("jbscrape failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	cfg := config.DefaultConfig()
	env := envDefaults{}

	majorsDefault := env.str("MAJORS", joinInts(cfg.TargetMajors))
	sitesDefault := env.str("SITES", joinSources(cfg.Sources))
	pagesDefault := env.integer("PAGES", cfg.EbayPages)
	swappaDefault := env.integer("SWAPPA_LISTINGS", cfg.SwappaListingsPerModel)
	parallelDefault := env.integer("PARALLEL", cfg.Parallelism)
	outputDefault := env.str("OUTPUT", cfg.OutputFile)
	formatDefault := env.str("FORMAT", cfg.OutputFormat)
	noteDefault := env.str("NOTE", cfg.NoteFile)
	metricsDefault := env.str("METRICS_ADDR", cfg.MetricsAddr)
	databaseDefault := env.str("DATABASE_URL", cfg.DatabaseURL)
	renderDefault := env.boolean("RENDER", cfg.Render)
	chromeDefault := env.str("CHROME_PATH", "")
	if env.err != nil {
		return nil, env.err
	}

	fs := flag.NewFlagSet("jbscrape", flag.ContinueOnError)
	opts := &options{cfg: cfg, browser: browser.DefaultConfig()}

	fs.StringVar(&opts.rawMajors, "majors", majorsDefault, "Comma separated iOS major versions to search for")
	fs.StringVar(&opts.rawSources, "sites", sitesDefault, "Comma separated sites to search: ebay, swappa")
	fs.IntVar(&cfg.EbayPages, "pages", pagesDefault, "Result pages per eBay query")
	fs.IntVar(&cfg.SwappaListingsPerModel, "swappa-listings", swappaDefault, "Listings fetched per Swappa model page")
	fs.IntVar(&cfg.Parallelism, "parallel", parallelDefault, "Number of concurrent requests per site")
	delayMs := fs.Int("delay", int(cfg.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	randomDelayMs := fs.Int("random-delay", int(cfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := fs.Int("retry-backoff", int(cfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := fs.Int("retry-backoff-max", int(cfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&cfg.OutputFile, "output", outputDefault, "Output file path")
	fs.StringVar(&cfg.OutputFormat, "format", formatDefault, "Output format: csv, json, or dual")
	fs.StringVar(&cfg.NoteFile, "note", noteDefault, "Also write an HTML note to this file")
	fs.IntVar(&cfg.DisplayLimit, "limit", cfg.DisplayLimit, "Listings shown in the terminal summary")
	fs.BoolVar(&cfg.Render, "render", renderDefault, "Fetch pages through headless Chrome")
	noHeadless := fs.Bool("no-headless", false, "Show the Chrome window when -render is set")
	fs.StringVar(&opts.browser.ExecPath, "chrome-path", chromeDefault, "Chrome executable for -render")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", databaseDefault, "PostgreSQL DSN; accepted listings are upserted when set")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	majors, err := config.ParseMajors(opts.rawMajors)
	if err != nil {
		return nil, err
	}
	sources, err := config.ParseSources(opts.rawSources)
	if err != nil {
		return nil, err
	}
	cfg.TargetMajors = majors
	cfg.Sources = sources
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	opts.browser.Headless = !*noHeadless
	opts.browser.UserAgent = cfg.UserAgent
	if cfg.Timeout > opts.browser.Timeout {
		opts.browser.Timeout = cfg.Timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return opts, nil
}

func run(opts *options) error {
	cfg := opts.cfg
	slog.Info("starting scrape",
		slog.Any("majors", cfg.TargetMajors),
		slog.Any("sites", cfg.Sources),
		slog.Int("workers", cfg.Parallelism),
		slog.Bool("render", cfg.Render),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing with the listings found so far")
	}()

	metrics := scraper.NewMetrics()
	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)
	defer shutdownMetricsServer(metricsServer)

	var sink pipeline.ListingSink
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		sink = store
		slog.Info("postgres sink enabled")
	}

	// Records already scraped are still classified after an interrupt.
	p, err := pipeline.NewPipeline(context.WithoutCancel(ctx), cfg, sink, metrics.Registry)
	if err != nil {
		return err
	}
	p.Start()
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	sources, err := scraper.NewSources(cfg, metrics)
	if err != nil {
		return err
	}
	if cfg.Render {
		renderer, err := browser.NewRenderer(opts.browser)
		if err != nil {
			return err
		}
		defer renderer.Close()
		for _, src := range sources {
			src.UseTransport(&browser.Transport{Renderer: renderer})
		}
	}

	startTime := time.Now()
	var results []*models.ScraperResult
	for _, src := range sources {
		result, err := src.Run(ctx, p)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			slog.Error("source failed", slog.String("source", string(src.Name())), slog.Any("error", err))
		}
	}

	if err := p.Close(); err != nil {
		if errors.Is(err, pipeline.ErrPipelineCloseTimeout) {
			return err
		}
		slog.Error("storing listings failed", slog.Any("error", err))
	}

	rep := report.Build(p.Listings(), startTime)
	report.Display(os.Stdout, rep, cfg.DisplayLimit)

	if err := writeReport(cfg, rep); err != nil {
		return err
	}
	if cfg.NoteFile != "" {
		if err := os.WriteFile(cfg.NoteFile, []byte(report.NoteHTML(rep, time.Now())), 0o644); err != nil {
			return fmt.Errorf("write note: %w", err)
		}
		slog.Info("note written", slog.String("file", cfg.NoteFile))
	}

	printSummary(results, time.Since(startTime), cfg, p.GetMetrics())
	return nil
}

func writeReport(cfg *config.Config, rep *models.Report) error {
	writer, err := pipeline.NewReportWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	if err := writer.Write(rep); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		return fmt.Errorf("output validation failed: %w", err)
	}
	return writer.Close()
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(results []*models.ScraperResult, duration time.Duration, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	received, _ := metrics["received_records"].(int64)
	accepted, _ := metrics["accepted_listings"].(int64)
	fmt.Printf("  Records:       %d\n", received)
	fmt.Printf("  Listings:      %d\n", accepted)
	if rejections, ok := metrics["rejections"].(map[string]int); ok && len(rejections) > 0 {
		fmt.Printf("  Rejected:      %v\n", rejections)
	}

	for _, result := range results {
		successRate := 0.0
		if result.RequestCount > 0 {
			successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
		}
		fmt.Printf("  [%s] requests=%d pages=%d records=%d success=%.2f%% retries=%d failed=%d\n",
			result.Source, result.RequestCount, result.PageCount, result.RecordCount,
			successRate, result.RetryCount, len(result.FailedURLs))
		if len(result.ErrorsByType) > 0 {
			fmt.Printf("         errors: %v\n", result.ErrorsByType)
		}
	}

	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if cfg.OutputFormat == "dual" {
		csvFile, jsonFile := pipeline.DualFilenames(cfg.OutputFile)
		fmt.Printf("  Output files:  %s, %s\n", csvFile, jsonFile)
	} else {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	if cfg.NoteFile != "" {
		fmt.Printf("  Note:          %s\n", cfg.NoteFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	// The listing table goes to stdout, so logs stay on stderr.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

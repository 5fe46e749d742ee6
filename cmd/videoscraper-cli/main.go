package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zpx01/video-scraper/internal/config"
	"github.com/zpx01/video-scraper/internal/domain"
	"github.com/zpx01/video-scraper/internal/downloader"
	"github.com/zpx01/video-scraper/internal/extractor"
	"github.com/zpx01/video-scraper/internal/fetcher"
	"github.com/zpx01/video-scraper/internal/pipeline"
	"github.com/zpx01/video-scraper/internal/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	urlsFile := flag.String("urls", "", "Path to a file of source URLs, one per line (reads stdin if omitted)")
	quality := flag.String("quality", "", "Minimum quality filter: hd or uhd (default: no filter)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("videoscraper-cli %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	urls, err := readURLs(*urlsFile)
	if err != nil {
		logger.Error("failed to read source URLs", "error", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "no source URLs provided")
		os.Exit(1)
	}

	var filter *domain.VideoFilter
	switch strings.ToLower(*quality) {
	case "hd":
		f := domain.HDVideoFilter()
		filter = &f
	case "uhd":
		f := domain.UHDVideoFilter()
		filter = &f
	case "":
	default:
		fmt.Fprintf(os.Stderr, "unknown quality filter %q (want hd or uhd)\n", *quality)
		os.Exit(1)
	}

	if cfg.Storage.Backend == "local" {
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0o755); err != nil {
			logger.Error("failed to create storage directory", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}

	f, err := fetcher.New(cfg.Scraper)
	if err != nil {
		logger.Error("failed to initialize fetcher", "error", err)
		os.Exit(1)
	}
	ex := extractor.New()
	dl := downloader.New(f, cfg.Scraper)

	p := pipeline.New(cfg.Scraper, cfg.Storage, f, ex, dl, store, logger)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- p.Run(sigCtx, cfg.Worker.Concurrency, filter)
	}()

	results := p.AddURLs(sigCtx, urls)
	submitted := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", r.URL, r.Err)
			continue
		}
		submitted++
	}

	waitForDrain(sigCtx, p, submitted)
	p.Stop()
	<-runErrCh

	stats := p.Stats()
	fmt.Println()
	fmt.Println("Run complete")
	fmt.Println("------------")
	fmt.Printf("Submitted:  %d\n", submitted)
	fmt.Printf("Completed:  %d\n", stats.CompletedJobs)
	fmt.Printf("Failed:     %d\n", stats.FailedJobs)
	fmt.Printf("Bytes:      %d\n", stats.BytesDownloaded)

	if stats.FailedJobs > 0 {
		os.Exit(1)
	}
}

// waitForDrain polls the pipeline until every submitted job has left the
// pending/active stages or the context is cancelled.
func waitForDrain(ctx context.Context, p *pipeline.Pipeline, submitted int) {
	if submitted == 0 {
		return
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Stats()
			if s.PendingJobs == 0 && s.ActiveJobs == 0 {
				return
			}
		}
	}
}

func readURLs(path string) ([]string, error) {
	var scanner *bufio.Scanner
	if path == "" {
		scanner = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		scanner = bufio.NewScanner(f)
	}

	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zpx01/video-scraper/internal/api"
	"github.com/zpx01/video-scraper/internal/api/handler"
	"github.com/zpx01/video-scraper/internal/config"
	"github.com/zpx01/video-scraper/internal/downloader"
	"github.com/zpx01/video-scraper/internal/extractor"
	"github.com/zpx01/video-scraper/internal/fetcher"
	"github.com/zpx01/video-scraper/internal/pipeline"
	"github.com/zpx01/video-scraper/internal/repository"
	"github.com/zpx01/video-scraper/internal/storage"
	"github.com/zpx01/video-scraper/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("videoscraper-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting videoscraper server", "version", Version, "build_time", BuildTime)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
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
		logger.Error("failed to initialize storage backend", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}
	logger.Info("storage backend ready", "backend", store.BackendType())

	f, err := fetcher.New(cfg.Scraper)
	if err != nil {
		logger.Error("failed to initialize fetcher", "error", err)
		os.Exit(1)
	}
	ex := extractor.New()
	dl := downloader.New(f, cfg.Scraper)

	p := pipeline.New(cfg.Scraper, cfg.Storage, f, ex, dl, store, logger)

	go func() {
		if err := p.Run(ctx, cfg.Worker.Concurrency, nil); err != nil {
			logger.Error("pipeline run error", "error", err)
		}
	}()
	logger.Info("pipeline started", "concurrency", cfg.Worker.Concurrency)

	jobRepo, err := newJobRepository(cfg.Worker, cfg.Storage.LocalPath, logger)
	if err != nil {
		logger.Error("failed to initialize job repository", "error", err)
		os.Exit(1)
	}
	if closer, ok := jobRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	syncer := repository.NewSyncer(p, jobRepo, 10*time.Second, logger)
	go syncer.Run(ctx)

	reconciler := worker.NewPool(worker.Config{PollInterval: cfg.Worker.PollInterval}, jobRepo, p, logger)
	reconciler.Start()

	jobHandler := handler.NewJobHandler(p, logger)
	healthHandler := handler.NewHealthHandler(p, cfg.Storage.LocalPath)
	router := api.NewRouter(jobHandler, healthHandler, cfg.Server.APIKey)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	p.Stop()
	if err := reconciler.Stop(10 * time.Second); err != nil {
		logger.Error("reconciler shutdown error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cancel()
	logger.Info("shutdown complete")
}

// newJobRepository opens a SQLite-backed job repository when
// worker.persist_jobs is set (§13), falling back to the in-memory
// repository otherwise. DBPath takes precedence over a path derived from
// the local storage directory.
func newJobRepository(cfg config.WorkerConfig, localPath string, logger *slog.Logger) (repository.JobRepository, error) {
	if !cfg.PersistJobs {
		logger.Info("worker.persist_jobs is false; job history will not survive restarts")
		return repository.NewInMemoryJobRepository(), nil
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(localPath, ".jobs.db")
	}
	repo, err := repository.NewSQLiteJobRepository(dbPath)
	if err != nil {
		return nil, err
	}
	logger.Info("job repository initialized with SQLite persistence", "db_path", dbPath)
	return repo, nil
}

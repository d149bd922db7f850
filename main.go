package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fundamentusapi/internal/cache"
	"fundamentusapi/internal/config"
	"fundamentusapi/internal/coordinator"
	"fundamentusapi/internal/fetcher"
	"fundamentusapi/internal/fundamentus"
	"fundamentusapi/internal/query"
	"fundamentusapi/internal/ratelimit"
	"fundamentusapi/internal/scheduler"
	"fundamentusapi/internal/server"
)

const shutdownTimeout = 10 * time.Second

// app is the wired service.
type app struct {
	cfg       *config.Config
	pages     *fetcher.PageFetcher
	tables    *cache.Table
	server    *server.Server
	refresher *scheduler.Refresher
}

func newApp(cfg *config.Config) (*app, error) {
	client := fetcher.NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	pages := fetcher.NewPageFetcher(client, ratelimit.New(cfg.RequestsPerMinute))
	source := fundamentus.NewSource(pages, cfg.SourceURL)

	// a load can spend up to one request timeout waiting on the limiter
	// and another on the request itself
	tables := cache.New(source, cfg.CacheTTL, cache.WithLoadTimeout(2*cfg.RequestTimeout))

	a := &app{
		cfg:    cfg,
		pages:  pages,
		tables: tables,
		server: server.New(query.NewService(tables)),
	}

	if cfg.RefreshCron != "" {
		a.refresher = scheduler.New(tables, 2*cfg.RequestTimeout)
		if err := a.refresher.Register(cfg.RefreshCron); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *app) tasks() []coordinator.Task {
	tasks := []coordinator.Task{
		{Name: "http", Run: a.serve, Critical: true},
		{Name: "warmup", Run: a.warmup},
	}
	if a.refresher != nil {
		tasks = append(tasks, coordinator.Task{Name: "scheduler", Run: a.schedule})
	}
	return tasks
}

func (a *app) serve(ctx context.Context) error {
	// a cold request waits on the upstream load before writing
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3*a.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", a.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// warmup loads the table once so the first request does not wait on upstream.
func (a *app) warmup(ctx context.Context) error {
	table, err := a.tables.Get(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	slog.Info("cache warmed", "tickers", len(table))
	return nil
}

func (a *app) schedule(ctx context.Context) error {
	a.refresher.Start()
	slog.Info("scheduled refresh enabled", "cron", a.cfg.RefreshCron)
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.refresher.Stop(stopCtx)
	return nil
}

func (a *app) Close() error {
	return a.pages.Close()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	// Load configuration
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(newLogger(cfg))

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer a.Close()

	// Cancel on interrupt signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting fundamentus indicators service",
		"source", cfg.SourceURL,
		"cache_ttl", cfg.CacheTTL,
		"requests_per_minute", cfg.RequestsPerMinute)

	if err := coordinator.New(a.tasks()...).Run(ctx); err != nil {
		slog.Error("service stopped", "error", err.Error())
		a.Close()
		os.Exit(1)
	}
	slog.Info("service stopped")
}

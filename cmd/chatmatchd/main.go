// Chatmatchd serves the self-learning chat matcher over HTTP.
//
// Configuration is read from ~/.config/chatmatch/config.yaml (or the file
// given with -config) and CHATMATCH_* environment variables.
//
// Usage:
//
//	# Start with defaults (in-memory store on :8080)
//	chatmatchd
//
//	# Persist to sqlite
//	CHATMATCH_STORE_PROVIDER=sqlite CHATMATCH_STORE_PATH=/var/lib/chatmatch/chat.db chatmatchd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chatmatch/internal/chatmemory"
	"github.com/fyrsmithlabs/chatmatch/internal/config"
	"github.com/fyrsmithlabs/chatmatch/internal/events"
	httpapi "github.com/fyrsmithlabs/chatmatch/internal/http"
	"github.com/fyrsmithlabs/chatmatch/internal/kvstore"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"github.com/fyrsmithlabs/chatmatch/internal/matcher"
	"github.com/fyrsmithlabs/chatmatch/internal/responder"
	"github.com/fyrsmithlabs/chatmatch/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const defaultLocale = "en"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/chatmatch/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  chatmatchd           Start the chatmatch daemon\n")
			fmt.Fprintf(os.Stderr, "  chatmatchd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("chatmatchd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires every component and serves until ctx is cancelled, then shuts
// down in reverse order: HTTP, assistant (pending learning), events, store,
// telemetry.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSection(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := logging.NewLogger(logging.FromSection(cfg.Logging), tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if tel.Health().Degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without full export")
	}

	logger.Info(ctx, "starting chatmatchd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.Bool("telemetry", tel.IsEnabled()))

	kv, err := kvstore.New(ctx, kvstore.Config{
		Provider:  cfg.Store.Provider,
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL.Value(),
		KeyPrefix: cfg.Store.KeyPrefix,
		Timeout:   cfg.Store.Timeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Provider, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn(context.Background(), "store close failed", zap.Error(err))
		}
	}()

	resp, err := newResponder(ctx, cfg.Matcher, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn(context.Background(), "event publisher close failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := matcher.NewMetrics(reg)

	store := chatmemory.NewStore(kv, defaultLocale, logger.Named("chatmemory"),
		chatmemory.WithReadErrorHook(metrics.ReadErrorHook()))
	assistant := matcher.NewAssistant(store, resp, matcher.Options{
		Logger:    logger.Named("matcher"),
		Metrics:   metrics,
		Publisher: publisher,
	})

	srv, err := httpapi.NewServer(assistant, logger.Named("http"), &httpapi.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		BodyLimit: cfg.Server.BodyLimit,
		Version:   version,
		Gatherer:  reg,
		Meter:     tel.Meter("github.com/fyrsmithlabs/chatmatch/internal/http"),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = assistant.Close()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := assistant.Close(); err != nil {
		errs = append(errs, fmt.Errorf("assistant close: %w", err))
	}
	logger.Info(context.Background(), "chatmatchd stopped")
	return errors.Join(errs...)
}

func newResponder(ctx context.Context, cfg config.MatcherConfig, logger *logging.Logger) (*responder.Responder, error) {
	zl := logger.Named("responder").Underlying()
	if cfg.TaxonomyFile == "" {
		return responder.NewDefault(zl)
	}

	tax, err := responder.LoadFile(cfg.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy: %w", err)
	}
	resp, err := responder.New(tax, zl)
	if err != nil {
		return nil, fmt.Errorf("creating responder: %w", err)
	}
	if cfg.WatchTaxonomy {
		if err := resp.Watch(ctx, cfg.TaxonomyFile); err != nil {
			return nil, fmt.Errorf("watching taxonomy: %w", err)
		}
		logger.Info(ctx, "watching taxonomy", zap.String("path", cfg.TaxonomyFile))
	}
	return resp, nil
}

func newPublisher(cfg config.EventsConfig, logger *logging.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.Nop{}, nil
	}
	p, err := events.Connect(cfg.URL, cfg.SubjectPrefix, logger.Named("events").Underlying())
	if err != nil {
		return nil, fmt.Errorf("connecting event publisher: %w", err)
	}
	logger.Info(context.Background(), "publishing learning events", zap.String("url", cfg.URL))
	return p, nil
}

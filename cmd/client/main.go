package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/docdash/internal/buildinfo"
	"github.com/dmitrijs2005/docdash/internal/client/cli"
	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/config"
	"github.com/dmitrijs2005/docdash/internal/client/services"
	"github.com/dmitrijs2005/docdash/internal/client/storage"
	"github.com/dmitrijs2005/docdash/internal/logging"
	"github.com/dmitrijs2005/docdash/internal/metrics"
	"github.com/dmitrijs2005/docdash/internal/otelx"
)

const serviceName = "docdash-client"

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()
	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func newLogger(cfg *config.Config) (logging.Logger, func()) {
	if cfg.LogFile != "" {
		z := logging.NewFileLogger(cfg.LogFile, cfg.LogLevel)
		return z, func() { _ = z.Sync() }
	}
	// The REPL owns stdout.
	return logging.NewTextLogger(os.Stderr, cfg.LogLevel), func() {}
}

// initSignalHandler cancels ctx on the first signal and exits on the second.
func initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nShutting down, press Enter to leave (Ctrl-C again to force)")
		cancel()
		<-sigs
		os.Exit(1)
	}()
}

func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info(ctx, "metrics server started", "addr", addr)

	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	initSignalHandler(cancel)

	logger, syncLog := newLogger(cfg)
	defer syncLog()

	shutdownTracing, err := otelx.Init(ctx, serviceName, cfg.TracingEnabled)
	if err != nil {
		return fmt.Errorf("tracing init error: %w", err)
	}
	defer func() {
		sctx, c := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer c()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn(sctx, "tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("metrics init error: %w", err)
	}
	if cfg.MetricsAddr != "" {
		stop := startMetricsServer(ctx, cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	store, err := storage.Open(ctx, db, logger)
	if err != nil {
		return err
	}

	api, err := client.NewHTTPClient(store, client.Options{
		BaseURL:         cfg.ServerBaseURL,
		Timeout:         cfg.RequestTimeout,
		ReadRetries:     cfg.ReadRetries,
		MutationRetries: cfg.MutationRetries,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return err
	}

	out := cli.NewSyncWriter(os.Stdout)
	notifier := cli.NewColorNotifier(out, store.Theme())
	router := cli.NewRouter()

	session := services.NewSessionService(api, store, router, notifier, logger)
	api.OnSessionExpired(session.HandleSessionExpired)

	cats := services.NewCategoryService(api, cfg.CategoryCacheTTL, logger)
	session.OnReset(cats.Invalidate)

	agg := services.NewAggregator(cats, cfg.AggregatorConcurrency, logger, m)
	docs := services.NewDocumentService(api, agg, store, cats.Invalidate, logger)

	app := cli.NewApp(cli.Deps{
		Session:     session,
		Documents:   docs,
		Categories:  cats,
		Themes:      store,
		Credentials: store,
		Router:      router,
		Notifier:    notifier,
		In:          os.Stdin,
		Out:         out,
		Logger:      logger,
	}, cli.Options{
		ProfileCheckInterval: cfg.ProfileCheckInterval,
		PollInterval:         cfg.PollInterval,
		StalenessWindow:      cfg.StalenessWindow,
		DownloadDir:          cfg.DownloadDir,
	})

	logger.Info(ctx, "client started", "server", cfg.ServerBaseURL, "db", cfg.DatabasePath)
	app.Run(ctx)
	return nil
}

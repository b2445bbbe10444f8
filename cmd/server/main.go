package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podexport/backend/config"
	httpDelivery "github.com/podexport/backend/internal/delivery/http"
	"github.com/podexport/backend/internal/infrastructure/cache"
	"github.com/podexport/backend/internal/infrastructure/pichost"
	"github.com/podexport/backend/internal/infrastructure/pod"
	"github.com/podexport/backend/internal/logger"
	"github.com/podexport/backend/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.Server.Environment,
		Level:       cfg.Log.Level,
	})

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("output_dir", cfg.Export.OutputDir).
		Str("cache_match", cfg.Cache.Match).
		Msg("starting podexport v1.0.0")

	if cfg.Remote.InsecureSkipVerify {
		log.Warn().Str("base_url", cfg.Remote.BaseURL).Msg("TLS certificate verification disabled for remote POD service")
	}

	// Initialize infrastructure dependencies
	podClient := pod.NewClient(pod.ClientConfig{
		BaseURL:            cfg.Remote.BaseURL,
		Timeout:            cfg.Remote.Timeout,
		InsecureSkipVerify: cfg.Remote.InsecureSkipVerify,
		RateLimit:          cfg.Remote.RateLimit,
		Burst:              cfg.Remote.Burst,
	}, log)
	catalog := pod.NewCatalog(podClient, log)

	prober := pichost.NewProber(pichost.ProberConfig{
		BaseURL:     cfg.Images.BaseURL,
		IdleTimeout: cfg.Images.IdleTimeout,
	}, log)

	store := cache.NewFileStore(afero.NewOsFs(), cfg.Export.OutputDir, cfg.Cache.Match, log)

	// Initialize usecase layer
	exportService := usecase.NewExportService(
		catalog,
		prober,
		store,
		usecase.ExportServiceConfig{
			ResultLimit:       cfg.Remote.ResultLimit,
			ProbeConcurrency:  cfg.Images.Concurrency,
			EnrichConcurrency: cfg.Remote.Concurrency,
		},
		log,
	)

	handler := httpDelivery.NewHandler(exportService, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, srv, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// run serves until ctx is cancelled, then drains in-flight requests
func run(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

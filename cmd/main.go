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

	"github.com/joho/godotenv"

	"github.com/okian/pickem/internal/adapters/http/api"
	"github.com/okian/pickem/internal/adapters/http/site"
	"github.com/okian/pickem/internal/adapters/http/swagger"
	"github.com/okian/pickem/internal/adapters/http/ws"
	"github.com/okian/pickem/internal/adapters/seed"
	app "github.com/okian/pickem/internal/app"
	"github.com/okian/pickem/internal/config"
	"github.com/okian/pickem/internal/domain/cursor"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "pickem exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, serves until ctx is cancelled and then shuts
// everything down in reverse order.
func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	hub := ws.NewHub(ws.WithOrigins(cfg.Origins()), ws.WithLogger(log.Named("ws")))
	defer hub.Close()

	svc, err := newService(cfg, data, hub, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go metrics.RunSystemCollector(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, hub, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the board service from configuration.
func newService(cfg *config.Config, data *seed.Data, listener app.Listener, log logger.Logger) (*app.Service, error) {
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}
	return app.New(data,
		app.WithLogger(log.Named("app")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithSaveDebounce(cfg.SaveDebounce),
		app.WithLockCutoff(cutoff),
		app.WithDuplicatePolicy(cursor.Policy(cfg.DuplicatePolicy)),
		app.WithPlayoffSpots(cfg.PlayoffSpots),
		app.WithMaxDisplayed(cfg.MaxDisplayed),
		app.WithCurrentScore(cfg.CurrentScore),
		app.WithSuggestLimit(cfg.SuggestLimit),
		app.WithListener(listener),
	), nil
}

// newHandler registers every route on a fresh mux and wraps it with the
// rate limiter and CORS policy.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, hub *ws.Hub, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	apiServer := api.NewServer(svc,
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithCORSOrigins(cfg.Origins()),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)
	hub.Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	return apiServer.Handler(mux)
}

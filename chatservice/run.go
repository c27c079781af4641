package chatservice

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sweety-ai/sweety-chat/internal/api"
	"github.com/sweety-ai/sweety-chat/internal/companion"
	"github.com/sweety-ai/sweety-chat/internal/config"
	"github.com/sweety-ai/sweety-chat/internal/factory"
	"github.com/sweety-ai/sweety-chat/internal/health"
	"github.com/sweety-ai/sweety-chat/internal/logger"
	"github.com/sweety-ai/sweety-chat/internal/notify"
	"github.com/sweety-ai/sweety-chat/internal/services"
	"github.com/sweety-ai/sweety-chat/internal/session"
	"github.com/sweety-ai/sweety-chat/internal/store"
)

// deps are the long-lived components built once at startup.
type deps struct {
	store       store.Store
	transcripts store.Transcripts
	companion   *companion.Guarded
	notifier    *notify.Notifier
	close       func() error
}

// Run starts the chat service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("chat-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("transcript_backend", cfg.TranscriptBackend).
		Int("http_port", cfg.HTTPPort).
		Str("model", cfg.ModelName).
		Msg("Chat service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	d, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.close(); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}()

	// Start health checkers before the router so /api/health reports them
	svcHealth := startHealthCheckers(ctx, cfg, log, d)
	router := buildRouter(cfg, log, d, svcHealth)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.notifier.Run(gctx) })
	g.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Stack().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown on signal or when a sibling fails
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), turnBudget(cfg))
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*deps, error) {
	st, db, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	tr, err := factory.NewTranscripts(cfg, st, log)
	if err != nil {
		_ = db.Close()
		log.Error().Stack().Err(err).Msg("Transcript backend unavailable")
		return nil, err
	}

	guarded, err := factory.NewCompanion(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("companion: %w", err)
	}

	notifier, err := factory.NewNotifier(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	return &deps{
		store:       st,
		transcripts: tr,
		companion:   guarded,
		notifier:    notifier,
		close:       db.Close,
	}, nil
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(cfg *config.Config, log zerolog.Logger, d *deps, svcHealth *health.ServiceHealthChecker) *mux.Router {
	sessions := session.NewManager(cfg.SecretKey, cfg.SessionTTL, cfg.CookieSecure)

	userSvc := services.NewUserService(d.store.Users(), cfg.MinPasswordLen, log)
	transcriptSvc := services.NewTranscriptService(d.transcripts, log)
	chatSvc := services.NewChatService(transcriptSvc, d.companion, cfg.ContextLimit, cfg.HistoryLimit, log)

	root := api.NewRouter(api.Handlers{
		Users:  api.NewUserHandler(userSvc, sessions, d.notifier, log),
		Chat:   api.NewChatHandler(chatSvc, sessions, log),
		Health: api.NewHealthHandler(svcHealth),
	})
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return root
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, d *deps) *health.ServiceHealthChecker {
	var checkers []health.HealthChecker
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(d.store, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers = append(checkers, storeChecker)

	if cfg.TranscriptBackend == "file" {
		trChecker := store.NewTranscriptHealthChecker(d.transcripts, log, probeTimeout)
		go trChecker.Start(ctx, interval)
		checkers = append(checkers, trChecker)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// newHTTPServer leaves BaseContext unset: request contexts are not tied to the
// signal context, so Shutdown drains in-flight turns instead of cancelling them.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      turnBudget(cfg),
		IdleTimeout:       60 * time.Second,
	}
}

// turnBudget bounds one chat request: the model call plus storage writes.
// It is both the write timeout and the shutdown drain window.
func turnBudget(cfg *config.Config) time.Duration {
	return cfg.ModelTimeout + 15*time.Second
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

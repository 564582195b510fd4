package bucketservice

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/api"
	"github.com/Andrew920528/vibe-30/internal/auth"
	"github.com/Andrew920528/vibe-30/internal/config"
	"github.com/Andrew920528/vibe-30/internal/events"
	"github.com/Andrew920528/vibe-30/internal/factory"
	"github.com/Andrew920528/vibe-30/internal/health"
	"github.com/Andrew920528/vibe-30/internal/logger"
	"github.com/Andrew920528/vibe-30/internal/outbox"
	"github.com/Andrew920528/vibe-30/internal/services"
	"github.com/Andrew920528/vibe-30/internal/store"
)

// Run starts the bucket service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("vibe30-server")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Str("auth_mode", cfg.AuthMode).
		Int("http_port", cfg.HTTPPort).
		Msg("Bucket service starting")
	if cfg.AuthMode == config.AuthDev {
		log.Warn().Msg("dev auth enabled: the fixed local key is accepted; never run this in production")
	}

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, closer, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer closeQuietly(closer, log, "store")

	authn, err := auth.NewAuthenticator(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Authenticator unavailable")
		return err
	}

	// Events: request path publishes to the bus, the relay owns delivery.
	// The relay outlives the signal and stops once the bus is closed.
	bus := events.NewBus(cfg.EventBuffer)
	var sink events.Sink
	if cfg.EventOutbox {
		q, qCloser, err := factory.NewOutboxQueue(ctx, cfg, log)
		if err != nil {
			log.Error().Stack().Err(err).Msg("Event outbox unavailable")
			return err
		}
		defer closeQuietly(qCloser, log, "event outbox")
		log.Info().Msg("bucket events are parked in the outbox; run outbox-worker to deliver them")
		sink = outbox.NewSink(q)
	} else {
		sink = factory.NewEventSink(cfg, log)
	}
	defer closeQuietly(sink, log, "event sink")
	relayDone := startRelay(context.WithoutCancel(ctx), bus, sink, log)

	svc := services.NewBucketService(st, bus, log)

	// Start health checkers and block until dependencies report healthy
	svcHealth := startHealthCheckers(ctx, cfg, log, st)
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		bus.Close()
		<-relayDone
		return err
	}

	router := api.NewRouter(api.RouterDeps{Buckets: svc, Auth: authn, Health: svcHealth, Log: log})
	server := newHTTPServer(ctx, cfg.GetHTTPAddr(), router)
	errCh := serveHTTP(server, log)

	// Graceful shutdown on context cancel or server error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			runErr = err
		}
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		runErr = err
		stop()
	}

	// No handler can publish any more; let the relay flush what is buffered.
	bus.Close()
	<-relayDone
	log.Info().Msg("Server exited")
	return runErr
}

func startRelay(ctx context.Context, bus *events.Bus, sink events.Sink, log zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := events.NewRelay(bus, sink, log).Run(ctx); err != nil {
			log.Error().Err(err).Msg("event relay stopped")
		}
	}()
	return done
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	interval := cfg.HealthInterval()

	storeChecker := store.NewStoreHealthChecker(st, log, cfg.HealthProbeTimeout())
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
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
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth api.ServiceHealth) error {
	// Checkers start unhealthy and need one probe cycle to flip
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: %v not healthy within %d seconds", svcHealth.Down(), timeoutSeconds)
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

func closeQuietly(c io.Closer, log zerolog.Logger, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("component", what).Msg("close failed")
	}
}

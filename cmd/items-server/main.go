package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Andrew920528/vibe-30/internal/config"
	"github.com/Andrew920528/vibe-30/internal/items"
	"github.com/Andrew920528/vibe-30/internal/logger"
)

func main() {
	log := logger.New("items-server")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := items.Open(ctx, cfg.ItemsSQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ItemsSQLitePath).Msg("Failed to open items database")
	}
	defer func() { _ = st.Close() }()
	log.Info().Str("path", cfg.ItemsSQLitePath).Msg("Connected to items database")

	server := &http.Server{
		Addr:         cfg.GetItemsHTTPAddr(),
		Handler:      items.NewRouter(items.NewHandler(st, log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		os.Exit(1)
	}

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

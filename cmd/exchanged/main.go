package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/0xledger/fenbook/internal/config"
	"github.com/0xledger/fenbook/internal/engine"
	"github.com/0xledger/fenbook/internal/gateway"
	"github.com/0xledger/fenbook/internal/httpapi"
	"github.com/0xledger/fenbook/internal/sink"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	store, err := sink.OpenSQLite(cfg.StorageDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event sink")
	}
	defer store.Close()

	eng := engine.New(cfg.Ticker)
	gw := gateway.New(eng, store, cfg.QueueBuffer)

	t, ctx := tomb.WithContext(ctx)
	gw.Start(t)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.New(gw),
	}

	t.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("ticker", cfg.Ticker).Msg("exchanged listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	t.Go(func() error {
		<-t.Dying()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")
	t.Kill(nil)

	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("exchanged exited with error")
		os.Exit(1)
	}
	log.Info().Msg("exchanged stopped cleanly")
}

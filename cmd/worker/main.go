// Command worker keeps the local ledger synchronized in the background.
//
// It syncs on startup, every SYNC_INTERVAL, and on SIGHUP, which stands in for the
// application regaining focus.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/app"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/dvloznov/cashflow-planner/internal/syncer"
)

func main() {
	bootLog := logger.New()
	cfg := config.Load(bootLog)

	interval := flag.Duration("interval", cfg.SyncInterval, "Periodic sync interval (or set SYNC_INTERVAL env)")
	flag.Parse()

	log := logger.NewFormat(os.Stdout, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))
	if *interval <= 0 {
		log.Fatal().Dur("interval", *interval).Msg("Sync interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if a.Sync.Status().Status == syncer.StatusDisabled {
		log.Fatal().Msg("Sync is not configured, set SYNC_ENABLED and SYNC_ID")
	}

	log.Info().Dur("interval", *interval).Msg("Starting sync worker")
	a.Sync.Start(ctx)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case <-ticker.C:
			a.Sync.Periodic()
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				log.Info().Msg("Foreground signal received")
				a.Sync.Foreground()
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Shutting down sync worker")
			flushCtx, flushCancel := context.WithTimeout(ctx, time.Minute)
			if err := a.Sync.Flush(flushCtx); err != nil {
				log.Warn().Err(err).Msg("Final sync failed")
			}
			flushCancel()
			return
		}
	}
}

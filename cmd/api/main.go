// Command api serves the planner ledger over HTTP and keeps it synchronized in the
// background while running.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/api/handlers"
	"github.com/dvloznov/cashflow-planner/internal/app"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load(logger.New())

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewFormat(os.Stdout, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	server := &http.Server{
		Addr: ":" + *port,
		Handler: handlers.NewRouter(handlers.Deps{
			Ledger:   a.Ledger,
			Sync:     a.Sync,
			Backup:   a.Backup,
			Insights: a.Insights,
			Limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
			Log:      log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // insights and manual sync wait on remote calls
		IdleTimeout:  60 * time.Second,
	}

	a.Sync.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", *port).Str("sync", string(a.Sync.Status().Status)).Msg("Starting API server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// edits made just before shutdown are still waiting on the debounce
		if err := a.Sync.Flush(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Final sync failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API server stopped with error")
		return
	}
	log.Info().Msg("API server exited")
}

// Command reportserver exposes check-run history recorded by
// -record-db over HTTP. It is read-only: it never compiles, runs, or
// validates anything itself.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"probcheck/core"
)

func main() {
	cfg := core.Load()
	log, closer, err := core.SetupLogging(cfg, "reportserver.log")
	if err != nil {
		panic(err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := core.NewHistoryPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect history database")
	}
	defer pool.Close()

	repo := core.NewPgHistoryRepository(pool)
	svc := core.NewReportService(repo)

	addr := cfg.ReportServerAddr
	if addr == "" {
		addr = ":8089"
	}

	httpSrv := &http.Server{Addr: addr, Handler: svc.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("reportserver listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("reportserver exited")
	}
}

// Binary server hosts negotiation overlays for web pages over websockets.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"haggle-go/internal/analytics"
	"haggle-go/internal/config"
	"haggle-go/internal/metrics"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/overlay"
	"haggle-go/internal/util"
	"haggle-go/internal/web"
)

func main() {
	path := "internal/config/config.yaml"
	if v := os.Getenv("HAGGLE_CONFIG"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	if err := config.ApplyEnv(cfg); err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("apply env overrides")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	sink, err := analytics.Open(cfg.Analytics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open analytics sink")
	}
	var notifier negotiation.Notifier
	if sink != nil {
		async := analytics.NewAsync(sink, cfg.Analytics.QueueSize, log)
		defer async.Close()
		notifier = async
	}

	host := web.NewServer(web.Options{
		Overlay:        overlay.FromConfig(cfg),
		Notifier:       notifier,
		WriteTimeout:   cfg.Server.WriteTimeout(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           host.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("sink", cfg.Analytics.Sink).Msg("overlay host started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("overlay host stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	host.Wait()
}

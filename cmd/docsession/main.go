// cmd/docsession/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docassembly-sdk/internal/answercache"
	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/database"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/internal/common/observability"
	"docassembly-sdk/internal/host"
	"docassembly-sdk/internal/instrument"
	"docassembly-sdk/internal/sessionstore"
	"docassembly-sdk/pkg/services/rest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting document session host...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Engine client ---
	engine, err := rest.New(rest.Options{
		BaseURL:      cfg.Engine.BaseURL,
		SubscriberID: cfg.Engine.SubscriberID,
		SigningKey:   cfg.Engine.SigningKey,
		BillingRef:   cfg.Engine.BillingRef,
		Timeout:      config.GetDuration(cfg.Engine.Timeout),
		Logger:       log,
	})
	if err != nil {
		zapLog.Fatal("engine client init failed", zap.Error(err))
	}
	svc := instrument.Wrap(engine, log, obs)

	// --- Redis with retry ---
	rdb, err := database.ConnectRedis(ctx, cfg.Redis, 10, 2*time.Second, log)
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	assembly := host.AssemblySettingsFromConfig(cfg.Assembly)
	interview, err := host.InterviewSettingsFromConfig(cfg.Interview)
	if err != nil {
		zapLog.Fatal("interview settings invalid", zap.Error(err))
	}

	cache := answercache.New(cfg.AnswerCache, answercache.SystemClock, log)
	h := host.New(host.Options{
		Services:          svc,
		Store:             sessionstore.New(rdb.GetClient(), cfg.Session, log),
		Answers:           cache,
		Logger:            log,
		AssemblySettings:  assembly,
		InterviewSettings: interview,
	})

	go sweepAnswers(ctx, h, config.GetSeconds(cfg.AnswerCache.TTL), log)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				zapLog.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Session host listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping host...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down http server", zap.Error(err))
	}
	zapLog.Info("Session host stopped")
}

// sweepAnswers expires idle cached answers every half TTL.
func sweepAnswers(ctx context.Context, h *host.Host, ttl time.Duration, log logger.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := h.SweepAnswers()
			if err != nil {
				log.WithError(err).Warn("Answer cache sweep failed", nil)
				continue
			}
			if n > 0 {
				log.Debug("Answer cache swept", map[string]interface{}{logger.KeyCount: n})
			}
		}
	}
}

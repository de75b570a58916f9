// Command sentinel runs the Veris Sentinel health-and-behavior monitor: a
// periodic driver loop that probes a target memory/context service, persists
// cycle reports, raises alerts on sustained failure, and serves an HTTP API
// over the live state.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/veris-ai/sentinel/internal/alert"
	"github.com/veris-ai/sentinel/internal/api"
	"github.com/veris-ai/sentinel/internal/check"
	"github.com/veris-ai/sentinel/internal/checks"
	"github.com/veris-ai/sentinel/internal/config"
	"github.com/veris-ai/sentinel/internal/credentials"
	"github.com/veris-ai/sentinel/internal/probe"
	"github.com/veris-ai/sentinel/internal/scheduler"
	"github.com/veris-ai/sentinel/internal/state"
	"github.com/veris-ai/sentinel/internal/store"
	"github.com/veris-ai/sentinel/internal/telemetry/logging"
	"github.com/veris-ai/sentinel/internal/telemetry/metrics"
	"github.com/veris-ai/sentinel/internal/telemetry/tracing"
	"go.uber.org/zap"
)

// Exit codes per the external-interfaces contract: 0 normal, 1 fatal
// misconfiguration, 2 unrecoverable init failure.
const (
	exitOK            = 0
	exitMisconfigured = 1
	exitInitFailure   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("fatal misconfiguration: %v", err)
		return exitMisconfigured
	}

	logger := logging.New()
	tracer := tracing.New("veris-sentinel")
	mp := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := check.NewRegistry()
	checks.Register(registry, cfg.EnabledChecks, cfg.PerCheckTimeout())

	st := state.New()

	httpClient := probe.NewClient(probe.Options{DefaultTimeout: cfg.PerCheckTimeout()})
	creds := credentials.Bundle{
		APIKey:      cfg.MCPAPIKey,
		HeaderName:  cfg.CredHeaderName,
		ReaderToken: cfg.MCPAPIKey,
	}

	dataStore, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.ErrorCtx(ctx, "unrecoverable: cannot open persistence store", zap.Error(err))
		return exitInitFailure
	}
	defer dataStore.Close()
	go dataStore.RunRetentionSweep(ctx, cfg.DBRetention(), 1*time.Hour)

	transports := buildTransports(cfg)
	alertPolicy := alert.New(cfg.AlertThreshold, cfg.AlertCooldown(), transports, mp, logger)

	sched := scheduler.New(scheduler.Config{
		Period:          cfg.Period(),
		JitterFraction:  cfg.JitterFraction,
		MaxParallel:     cfg.MaxParallel,
		PerCheckTimeout: cfg.PerCheckTimeout(),
		CycleBudget:     cfg.CycleBudget(),
		TargetBaseURL:   cfg.TargetBaseURL,
		Endpoints:       checks.EndpointDefaults,
	}, registry, st, dataStore, alertPolicy, mp, logger, tracer, httpClient, creds)
	sched.Start(ctx)

	server := api.New(api.Config{
		HostCheckSharedSecret: cfg.HostCheckSharedSecret,
	}, registry, st, sched, dataStore, alertPolicy, mp, logger)

	addr := cfg.APIBind + ":" + strconv.Itoa(cfg.APIPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.InfoCtx(ctx, "api server listening", zap.String("addr", addr))
		serveErrCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := exitOK
	select {
	case <-sigCh:
		logger.InfoCtx(ctx, "signal received; shutting down")
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(ctx, "api server failed", zap.Error(err))
			exitCode = exitMisconfigured
		}
	}

	go func() {
		<-sigCh
		logger.WarnCtx(ctx, "second signal received; forcing exit")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	return exitCode
}

func buildTransports(cfg config.Config) []alert.Transport {
	var transports []alert.Transport
	if cfg.WebhookURL != "" {
		transports = append(transports, alert.NewWebhookTransport(cfg.WebhookURL))
	}
	if cfg.ChatToken != "" && cfg.ChatChannelID != "" {
		transports = append(transports, alert.NewChatTransport(cfg.ChatToken, cfg.ChatChannelID))
	}
	return transports
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"JetsonChat/internal/backend"
	"JetsonChat/internal/config"
	"JetsonChat/internal/relay"
	"JetsonChat/internal/server"
	"JetsonChat/internal/telemetry"
)

const version = "1.0.0"

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.UpstreamURL, "upstream-url", cfg.UpstreamURL, "Ollama chat endpoint")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "Model identifier sent upstream")
	flag.DurationVar(&cfg.StreamTimeout, "stream-timeout", cfg.StreamTimeout, "Upper bound for one relayed stream (0 disables)")
	flag.BoolVar(&cfg.BufferPartialLines, "buffer-partial-lines", cfg.BufferPartialLines, "Join NDJSON lines split across upstream reads")
	flag.StringVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "Access-Control-Allow-Origin value (empty disables CORS headers)")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")
	flag.BoolVar(&cfg.LogStdout, "log-stdout", cfg.LogStdout, "Also write logs to stderr")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := telemetry.InitLogger(telemetry.LoggerConfig{
		Dir:         cfg.LogDir,
		ServiceName: config.DefaultServiceName,
		Stdout:      cfg.LogStdout,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.LogDir, config.DefaultServiceName, version, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownTelemetry()

	upstream, err := backend.NewOllamaClient(backend.OllamaConfig{
		URL:    cfg.UpstreamURL,
		Logger: logger,
		Tracer: tracer,
		Meter:  meter,
	})
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	mode := relay.LinesPerRead
	if cfg.BufferPartialLines {
		mode = relay.LinesBuffered
	}
	translator, err := relay.NewTranslator(relay.TranslatorConfig{Mode: mode, Logger: logger, Meter: meter})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	handler, err := relay.NewHandler(upstream, relay.HandlerConfig{
		Model:         cfg.Model,
		StreamTimeout: cfg.StreamTimeout,
		Translator:    translator,
		Logger:        logger,
		Tracer:        tracer,
		Meter:         meter,
	})
	if err != nil {
		return fmt.Errorf("failed to create relay handler: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(handler, server.Options{
		ServiceName:    config.DefaultServiceName,
		Model:          cfg.Model,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("relay listening",
			"addr", cfg.Addr,
			"upstream", cfg.UpstreamURL,
			"model", cfg.Model,
			"line_mode", mode.String(),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

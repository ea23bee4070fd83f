package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicedraft/voicedraft/internal/capture"
	"github.com/voicedraft/voicedraft/internal/clipboard"
	"github.com/voicedraft/voicedraft/internal/config"
	"github.com/voicedraft/voicedraft/internal/credential"
	"github.com/voicedraft/voicedraft/internal/httpapi"
	"github.com/voicedraft/voicedraft/internal/observability"
	"github.com/voicedraft/voicedraft/internal/openai"
	"github.com/voicedraft/voicedraft/internal/status"
	"github.com/voicedraft/voicedraft/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	creds, err := credential.NewStore(ctx, cfg.DatabaseURL, cfg.CredentialFile)
	if err != nil {
		log.Fatalf("credential store init failed: %v", err)
	}
	defer creds.Close()

	var (
		transcriber openai.Transcriber
		generator   openai.Generator
	)
	switch cfg.Provider {
	case "mock":
		p := openai.NewMockProvider()
		transcriber = p
		generator = p
		log.Printf("model provider: mock")
	default:
		// "auto" and "openai" both talk to the real endpoint; the
		// credential is supplied per request, so there is nothing to
		// probe at startup.
		c := openai.NewClient(cfg.OpenAIBaseURL)
		transcriber = c
		generator = c
		log.Printf("model provider: openai (%s)", cfg.OpenAIBaseURL)
	}

	captures := capture.NewManager(capture.NewPushDevice(), cfg.PrimaryMaxDuration, cfg.TweakMaxDuration)
	reporter := status.NewReporter()
	hub := httpapi.NewHub()
	clip := clipboard.NewBuffer()

	controller := workflow.NewController(
		workflow.Config{
			TranscribeModel: cfg.TranscribeModel,
			TextModel:       cfg.TextModel,
			Style:           cfg.DefaultStyle,
		},
		captures,
		creds,
		transcriber,
		generator,
		reporter,
		hub,
		clip,
		metrics,
	)

	api := httpapi.New(cfg, controller, reporter, hub, clip)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

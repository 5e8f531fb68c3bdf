package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docresearch/internal/api"
	"github.com/dgallion1/docresearch/internal/app"
	"github.com/dgallion1/docresearch/internal/config"
	"github.com/dgallion1/docresearch/internal/logging"
	"github.com/dgallion1/docresearch/internal/metrics"
	"github.com/dgallion1/docresearch/internal/research"
	"github.com/dgallion1/docresearch/internal/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize collaborators.
	model := app.NewModel(cfg, log)
	parser, err := app.NewParser(cfg, model, log)
	if err != nil {
		log.Error("init parser", "error", err)
		os.Exit(1)
	}
	rec := metrics.New()

	// Initialize sessions.
	factory := func() (*research.Researcher, error) {
		return research.New(parser, app.ResearcherOptions(cfg, model, rec, log)...)
	}
	sessions := session.NewManager(session.Config{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
		UploadDir:   cfg.UploadDir,
	}, factory, log.With("component", "sessions"))
	sessions.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, model, rec, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		sessions.Stop()
		if model != nil {
			model.Close()
		}
	}()

	log.Info("starting docresearch",
		"port", cfg.Port,
		"model", modelName(cfg),
		"max_iterations", cfg.MaxIterations,
		"sufficiency_threshold", cfg.SufficiencyThreshold,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func modelName(cfg config.Config) string {
	if !cfg.ModelEnabled() {
		return "none"
	}
	return cfg.LLMModel
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/menta2k/framecast"
	"github.com/menta2k/framecast/internal/config"
	"github.com/menta2k/framecast/internal/logging"
)

func main() {
	var configPath, addr, backend, model, url, prompt, archiveDir, logLevel, logFormat string
	var maxTokens int
	var mirror, enableHistory, saveConfig, showVersion bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file path")
	flag.StringVar(&addr, "addr", "", "listen address (default :8000)")
	flag.StringVar(&backend, "backend", "", "vision backend: ollama or openai")
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&url, "url", "", "backend URL (defaults: ollama=http://localhost:11434, openai=https://api.openai.com)")
	flag.StringVar(&prompt, "prompt", "", "prompt used when a request has none")
	flag.IntVar(&maxTokens, "max-tokens", 0, "max tokens per answer")
	flag.BoolVar(&mirror, "mirror", false, "flip frames horizontally before analysis")
	flag.StringVar(&archiveDir, "archive", "", "save every received frame in this directory")
	flag.BoolVar(&enableHistory, "history", false, "record answers in Postgres (needs DATABASE_URL or history.database_url)")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.StringVar(&logFormat, "log-format", "", "log format: text|json")
	flag.BoolVar(&saveConfig, "save-config", false, "write the effective config to -config and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("framecast-server", framecast.GetVersion())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyEnv()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backend != "" {
		cfg.Server.Backend = backend
	}
	if model != "" {
		cfg.Server.Model = model
	}
	if url != "" {
		switch cfg.Server.Backend {
		case "ollama":
			cfg.Server.OllamaURL = url
		case "openai":
			cfg.Server.OpenAIURL = url
		}
	}
	if prompt != "" {
		cfg.Server.Prompt = prompt
	}
	if maxTokens > 0 {
		cfg.Server.MaxTokens = maxTokens
	}
	if mirror {
		cfg.Server.Mirror = true
	}
	if archiveDir != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Dir = archiveDir
	}
	if enableHistory {
		cfg.History.Enabled = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if saveConfig {
		if err := cfg.SaveToFile(configPath); err != nil {
			log.Fatal(err)
		}
		fmt.Println("config written to", configPath)
		return
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := framecast.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("framecast-server starting",
		"version", framecast.Version,
		"backend", cfg.Server.Backend,
		"model", cfg.Server.Model,
		"archive", cfg.Archive.Enabled,
		"history", cfg.History.Enabled)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
			cleanup()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}

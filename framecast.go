// Package framecast captures frames from a webcam, the screen or a single
// application window at a fixed interval, posts each one to a vision-model
// backend together with a prompt, and collects the answers in order.
//
// Basic usage:
//
//	cfg := config.Default()
//	client, err := framecast.NewClient(cfg, logger, framecast.ClientOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.SelectSource(ctx, capture.ModeWebcam); err != nil {
//		log.Fatal(err)
//	}
//	client.Start()
//
// The backend half is built with NewServer and answers POST /process_frame
// using either a local Ollama model or an OpenAI-compatible endpoint.
//
// The package consists of these main components:
//
// 1. Capture (pkg/capture): source selection, settings and the capture loop
// 2. Source (pkg/source): ffmpeg, screenshot and OpenCV frame sources
// 3. Server (pkg/server): the /process_frame HTTP backend
// 4. Describer (pkg/describer): prompt handling on top of a vision client
// 5. History (pkg/history): optional Postgres store with similarity search
package framecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/menta2k/framecast/internal/config"
	"github.com/menta2k/framecast/pkg/archive"
	"github.com/menta2k/framecast/pkg/capture"
	"github.com/menta2k/framecast/pkg/client"
	"github.com/menta2k/framecast/pkg/describer"
	"github.com/menta2k/framecast/pkg/history"
	"github.com/menta2k/framecast/pkg/ollama"
	"github.com/menta2k/framecast/pkg/openai"
	"github.com/menta2k/framecast/pkg/server"
	"github.com/menta2k/framecast/pkg/source"
)

// Version of framecast
const Version = "1.0.0"

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// ClientOptions are hooks not covered by the config file
type ClientOptions struct {
	// OnResponse is called for every appended response
	OnResponse func(capture.Entry)
	// Provider replaces the local platform sources
	Provider capture.Provider
	// Sender replaces the HTTP sender
	Sender capture.Sender
}

// NewClient builds a capture client from cfg
func NewClient(cfg *config.Config, logger *slog.Logger, opts ClientOptions) (*capture.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == nil {
		provider = source.NewProvider(SourceConfig(cfg), logger)
	}

	sender := opts.Sender
	if sender == nil {
		s, err := capture.NewHTTPSender(cfg.Client.BackendURL, time.Duration(cfg.Client.TimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		sender = s
	}

	return capture.NewClient(capture.Options{
		Provider: provider,
		Sender:   sender,
		Logger:   logger,
		Config: capture.Config{
			Prompt:          cfg.Client.Prompt,
			RefreshInterval: cfg.RefreshInterval(),
			APIKey:          cfg.Client.APIKey,
		},
		JPEGQuality:  cfg.Client.JPEGQuality,
		MaxFrameSize: cfg.Client.MaxFrameSize,
		OnResponse:   opts.OnResponse,
	})
}

// SourceConfig maps the source section of cfg onto the platform backends
func SourceConfig(cfg *config.Config) source.Config {
	sc := source.DefaultConfig()
	if cfg.Source.FFmpegPath != "" {
		sc.FFmpegPath = cfg.Source.FFmpegPath
	}
	if cfg.Source.Backend != "" {
		sc.Backend = cfg.Source.Backend
	}
	if cfg.Source.WebcamDevice != "" {
		sc.WebcamDevice = cfg.Source.WebcamDevice
	}
	if cfg.Source.FrameRate > 0 {
		sc.FrameRate = cfg.Source.FrameRate
	}
	sc.Window = cfg.Source.Window
	sc.Display = cfg.Source.Display
	return sc
}

// VisionBackend is a vision client that can also embed text
type VisionBackend interface {
	client.VisionClient
	client.Embedder
}

// NewVisionBackend creates the model client selected by cfg.Server.Backend
func NewVisionBackend(cfg *config.Config) (VisionBackend, error) {
	switch cfg.Server.Backend {
	case "ollama":
		c, err := ollama.NewClient(cfg.Server.OllamaURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		c.SetEmbedModel(cfg.History.EmbedModel)
		return c, nil
	case "openai":
		c, err := openai.NewClient(cfg.Server.OpenAIURL, cfg.Server.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		c.SetEmbedModel(cfg.History.EmbedModel)
		return c, nil
	}
	return nil, fmt.Errorf("unknown vision backend: %s", cfg.Server.Backend)
}

// NewServer builds the backend from cfg. The returned cleanup closes the
// history store when one was opened.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := NewVisionBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	deps := server.Deps{
		Describer: describer.New(backend, cfg.Server.Model, cfg.Server.Prompt, cfg.Server.MaxTokens),
		Logger:    logger,
	}

	if cfg.Archive.Enabled {
		a, err := archive.New(cfg.Archive.Dir, cfg.Archive.Format, cfg.Archive.Quality, cfg.Archive.Lossless)
		if err != nil {
			return nil, nil, err
		}
		deps.Archive = a
	}

	cleanup := func() {}
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.DatabaseURL, backend, cfg.History.Dimensions, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		deps.History = store
		cleanup = store.Close
	}

	srv, err := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		Version:     Version,
		APIKey:      cfg.Server.APIKey,
		Mirror:      cfg.Server.Mirror,
		MaxImageDim: cfg.Server.MaxImageDim,
		JPEGQuality: cfg.Server.JPEGQuality,
	}, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// Package server is the HTTP backend the capture client posts frames to.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/menta2k/framecast/pkg/analyzer"
	"github.com/menta2k/framecast/pkg/archive"
	"github.com/menta2k/framecast/pkg/describer"
	"github.com/menta2k/framecast/pkg/history"
	"github.com/menta2k/framecast/pkg/processing"
	"github.com/menta2k/framecast/pkg/types"
)

// Describer answers a prompt about one frame
type Describer interface {
	Describe(ctx context.Context, req describer.Request) (string, error)
}

// HistoryStore persists processed frames
type HistoryStore interface {
	Record(ctx context.Context, rec history.Record) (int64, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	Search(ctx context.Context, query string, limit int) ([]history.Match, error)
}

// Config holds the server settings
type Config struct {
	Addr    string
	Version string
	// APIKey is used when a request carries no key
	APIKey string
	// Mirror flips frames horizontally before they reach the model
	Mirror         bool
	MaxImageDim    int
	JPEGQuality    int
	BodyLimit      int
	RequestTimeout time.Duration
	AllowOrigins   string
}

// DefaultConfig returns the settings used by framecast-server without flags
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		MaxImageDim:    1024,
		JPEGQuality:    processing.DefaultJPEGQuality,
		BodyLimit:      16 << 20,
		RequestTimeout: 2 * time.Minute,
		AllowOrigins:   "*",
	}
}

// Deps are the collaborators of the server. Archive and History are optional.
type Deps struct {
	Describer Describer
	Archive   *archive.Archive
	History   HistoryStore
	Logger    *slog.Logger
}

// Server serves /process_frame and the history API
type Server struct {
	app       *fiber.App
	cfg       Config
	describer Describer
	archive   *archive.Archive
	history   HistoryStore
	analyzer  *analyzer.FrameAnalyzer
	processor *processing.Processor
	logger    *slog.Logger
}

// New creates the server and registers its routes
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Describer == nil {
		return nil, errors.New("server: describer is required")
	}
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = def.BodyLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = def.AllowOrigins
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		describer: deps.Describer,
		archive:   deps.Archive,
		history:   deps.History,
		analyzer:  analyzer.New(),
		processor: processing.NewProcessor(),
		logger:    logger.With("component", "server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "framecast",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Get("/healthz", s.handleHealth)
	app.Post("/process_frame", s.handleProcessFrame)
	app.Get("/history", s.handleHistory)
	app.Get("/history/search", s.handleHistorySearch)

	s.app = app
	return s, nil
}

// Listen serves on the configured address until Shutdown
func (s *Server) Listen() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders every error as {"error": msg}
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(types.ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{Status: "ok", Version: s.cfg.Version})
}

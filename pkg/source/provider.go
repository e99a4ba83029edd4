// Package source acquires video streams from the local platform: cameras
// and windows through an ffmpeg child process, whole displays through
// screenshot, and optionally cameras through OpenCV.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/menta2k/framecast/pkg/capture"
)

const (
	BackendFFmpeg = "ffmpeg"
	BackendGoCV   = "gocv"
)

var (
	ErrBackendUnavailable = errors.New("capture backend not compiled in")
	ErrStreamClosed       = errors.New("stream closed")
	ErrNoWindow           = errors.New("no application window configured")
)

// Config selects devices and tuning for the platform backends
type Config struct {
	FFmpegPath string `json:"ffmpeg_path"`
	// Backend is used for webcam and stream modes: "ffmpeg" or "gocv"
	Backend string `json:"backend"`
	// WebcamDevice is /dev/video0 on Linux, an avfoundation index on macOS
	// and a dshow device name on Windows
	WebcamDevice string `json:"webcam_device"`
	// Window is the X11 window id on Linux or the window title on Windows
	Window  string `json:"window"`
	Display int    `json:"display"`
	// X11Display is the X server used for window capture
	X11Display   string        `json:"x11_display"`
	FrameRate    int           `json:"frame_rate"`
	StartTimeout time.Duration `json:"start_timeout"`
}

// DefaultConfig returns defaults suitable for the running OS
func DefaultConfig() Config {
	cfg := Config{
		FFmpegPath:   "ffmpeg",
		Backend:      BackendFFmpeg,
		X11Display:   ":0.0",
		FrameRate:    2,
		StartTimeout: 10 * time.Second,
	}
	switch runtime.GOOS {
	case "linux":
		cfg.WebcamDevice = "/dev/video0"
	case "darwin":
		cfg.WebcamDevice = "0"
	case "windows":
		cfg.WebcamDevice = "Integrated Camera"
	}
	return cfg
}

// Provider implements capture.Provider for the local machine
type Provider struct {
	cfg    Config
	goos   string
	logger *slog.Logger
}

// NewProvider creates a provider. Zero fields in cfg take DefaultConfig values.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.WebcamDevice == "" {
		cfg.WebcamDevice = def.WebcamDevice
	}
	if cfg.X11Display == "" {
		cfg.X11Display = def.X11Display
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = def.FrameRate
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, goos: runtime.GOOS, logger: logger.With("component", "source")}
}

// Acquire opens a stream for mode
func (p *Provider) Acquire(ctx context.Context, mode capture.Mode, cons capture.Constraints) (capture.Stream, error) {
	switch mode {
	case capture.ModeScreen:
		return newScreenStream(p.cfg.Display)

	case capture.ModeWebcam, capture.ModeStream:
		if p.cfg.Backend == BackendGoCV {
			target := p.cfg.WebcamDevice
			if mode == capture.ModeStream {
				target = cons.URL
			}
			return openGoCV(target)
		}
	case capture.ModeApplication:
	default:
		return nil, fmt.Errorf("%w: %q", capture.ErrUnsupportedMode, mode)
	}

	args, err := inputArgs(p.goos, mode, cons, p.cfg)
	if err != nil {
		return nil, err
	}
	args = append(args, outputArgs(p.cfg.FrameRate)...)

	p.logger.Debug("starting ffmpeg", "mode", mode, "args", args)
	return startFFmpeg(ctx, p.cfg.FFmpegPath, args, p.cfg.StartTimeout, p.logger)
}

// inputArgs builds the ffmpeg input options for mode on goos
func inputArgs(goos string, mode capture.Mode, cons capture.Constraints, cfg Config) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	rate := fmt.Sprint(cfg.FrameRate)

	if mode == capture.ModeStream {
		if cons.URL == "" {
			return nil, fmt.Errorf("%w: stream URL is empty", capture.ErrUnsupportedMode)
		}
		if strings.HasPrefix(cons.URL, "rtsp://") {
			args = append(args, "-rtsp_transport", "tcp")
		}
		return append(args, "-i", cons.URL), nil
	}

	switch goos {
	case "linux":
		switch mode {
		case capture.ModeWebcam:
			return append(args, "-f", "v4l2", "-i", cfg.WebcamDevice), nil
		case capture.ModeApplication:
			if cfg.Window == "" {
				return nil, ErrNoWindow
			}
			args = append(args, "-f", "x11grab", "-framerate", rate, "-window_id", cfg.Window)
			if cons.CursorAlways {
				args = append(args, "-draw_mouse", "1")
			}
			return append(args, "-i", cfg.X11Display), nil
		}

	case "darwin":
		switch mode {
		case capture.ModeWebcam:
			return append(args, "-f", "avfoundation", "-framerate", "30", "-i", cfg.WebcamDevice), nil
		case capture.ModeApplication:
			// avfoundation cannot restrict to one window
			args = append(args, "-f", "avfoundation", "-framerate", "30")
			if cons.CursorAlways {
				args = append(args, "-capture_cursor", "1")
			}
			return append(args, "-i", fmt.Sprintf("Capture screen %d", cfg.Display)), nil
		}

	case "windows":
		switch mode {
		case capture.ModeWebcam:
			return append(args, "-f", "dshow", "-i", "video="+cfg.WebcamDevice), nil
		case capture.ModeApplication:
			if cfg.Window == "" {
				return nil, ErrNoWindow
			}
			args = append(args, "-f", "gdigrab", "-framerate", rate)
			if cons.CursorAlways {
				args = append(args, "-draw_mouse", "1")
			}
			return append(args, "-i", "title="+cfg.Window), nil
		}
	}

	return nil, fmt.Errorf("%w: %s on %s", capture.ErrUnsupportedMode, mode, goos)
}

// outputArgs makes ffmpeg write MJPEG frames to stdout
func outputArgs(frameRate int) []string {
	return []string{
		"-an",
		"-vf", fmt.Sprintf("fps=%d", frameRate),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-",
	}
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Mode selects where frames come from
type Mode string

const (
	ModeWebcam      Mode = "webcam"
	ModeScreen      Mode = "screen"
	ModeApplication Mode = "application"
	ModeStream      Mode = "stream"
)

// Modes lists every source mode in toggle order
var Modes = []Mode{ModeWebcam, ModeScreen, ModeApplication, ModeStream}

var (
	ErrUnsupportedMode = errors.New("unsupported source mode")
	ErrNoFrame         = errors.New("no frame available yet")
)

// ParseMode accepts the mode names plus the short aliases used on the console
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webcam", "camera", "cam":
		return ModeWebcam, nil
	case "screen", "display":
		return ModeScreen, nil
	case "application", "app", "window":
		return ModeApplication, nil
	case "stream", "url", "rtsp":
		return ModeStream, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Constraints describe what is requested from the platform for a mode
type Constraints struct {
	// FacingMode is "user" for the front camera
	FacingMode string
	// DisplaySurface restricts display capture; empty means any surface
	DisplaySurface string
	// CursorAlways keeps the pointer visible in captured frames
	CursorAlways bool
	// URL is the input for ModeStream
	URL string
}

// ConstraintsFor returns the constraints requested for mode
func ConstraintsFor(mode Mode) (Constraints, error) {
	switch mode {
	case ModeWebcam:
		return Constraints{FacingMode: "user"}, nil
	case ModeScreen:
		return Constraints{}, nil
	case ModeApplication:
		return Constraints{DisplaySurface: "application", CursorAlways: true}, nil
	case ModeStream:
		return Constraints{}, nil
	}
	return Constraints{}, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
}

// Stream is an acquired video source
type Stream interface {
	// Frame returns the current frame at the source's native size
	Frame(ctx context.Context) (image.Image, error)
	// Close releases every track of the stream
	Close() error
}

// Provider acquires streams from the platform
type Provider interface {
	Acquire(ctx context.Context, mode Mode, c Constraints) (Stream, error)
}

package analyzer

import (
	"fmt"
	"image"
	"strings"
)

// FrameAnalyzer checks incoming frames before they are sent to a model
type FrameAnalyzer struct {
	config Config
}

// Config holds configuration for frame checks
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	MaxImageSize     int // 0 = unlimited
}

// DefaultConfig returns the limits used by the backend
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "jpg", "png", "webp"},
		MinImageSize:     16,
		MaxImageSize:     8192,
	}
}

// New creates a new FrameAnalyzer with default configuration
func New() *FrameAnalyzer {
	return &FrameAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new FrameAnalyzer with custom configuration
func NewWithConfig(config Config) *FrameAnalyzer {
	return &FrameAnalyzer{config: config}
}

// MaxImageSize returns the largest accepted width or height, 0 when unlimited
func (a *FrameAnalyzer) MaxImageSize() int {
	return a.config.MaxImageSize
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// GetImageInfo returns basic information about an image
func (a *FrameAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ValidateImage checks that a decoded frame is usable
func (a *FrameAnalyzer) ValidateImage(img image.Image, format string) error {
	if !a.IsFormatSupported(format) {
		return fmt.Errorf("unsupported image format: %s", format)
	}

	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	if a.config.MaxImageSize > 0 && (bounds.Dx() > a.config.MaxImageSize || bounds.Dy() > a.config.MaxImageSize) {
		return fmt.Errorf("image too large: %dx%d (maximum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MaxImageSize)
	}
	return nil
}

// IsFormatSupported reports whether format is accepted, case-insensitively
func (a *FrameAnalyzer) IsFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

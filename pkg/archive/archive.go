// Package archive keeps a copy of every frame the backend processes.
package archive

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/framecast/internal/utils"
	"github.com/menta2k/framecast/pkg/processing"
)

// Archive writes frames to Dir as <uuid>.<ext>
type Archive struct {
	dir       string
	format    string
	quality   int
	lossless  bool
	processor *processing.Processor
}

// New creates the archive directory if needed
func New(dir, format string, quality int, lossless bool) (*Archive, error) {
	format = strings.ToLower(format)
	switch format {
	case "", "jpg", "jpeg", "png", "webp":
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", format)
	}
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{
		dir:       dir,
		format:    format,
		quality:   quality,
		lossless:  lossless,
		processor: processing.NewProcessor(),
	}, nil
}

// Dir returns the archive directory
func (a *Archive) Dir() string {
	return a.dir
}

// Save writes img and returns its path
func (a *Archive) Save(img image.Image) (string, error) {
	name := uuid.NewString() + "." + processing.Extension(a.format)
	path := filepath.Join(a.dir, name)
	if err := a.processor.SaveImage(img, path, a.format, a.quality, a.lossless); err != nil {
		return "", fmt.Errorf("failed to archive frame: %w", err)
	}
	return path, nil
}

//go:build !gocv

package source

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/framecast/pkg/capture"
)

func TestGoCVBackendUnavailable(t *testing.T) {
	p := NewProvider(Config{Backend: BackendGoCV}, nil)
	_, err := p.Acquire(context.Background(), capture.ModeWebcam, capture.Constraints{FacingMode: "user"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable, got %v", err)
	}
}

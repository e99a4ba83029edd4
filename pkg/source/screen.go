package source

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// screenStream grabs a whole display on every Frame call
type screenStream struct {
	display int

	mu     sync.Mutex
	closed bool
}

func newScreenStream(display int) (*screenStream, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("no active display found")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range, %d active", display, n)
	}
	return &screenStream{display: display}, nil
}

func (s *screenStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}

	img, err := screenshot.CaptureDisplay(s.display)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	return img, nil
}

func (s *screenStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

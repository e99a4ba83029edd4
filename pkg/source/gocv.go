//go:build gocv

package source

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/framecast/pkg/capture"
)

// gocvStream reads frames from an OpenCV VideoCapture
type gocvStream struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// openGoCV opens a camera index ("0") or a URL/file
func openGoCV(target string) (capture.Stream, error) {
	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open video capture %q: %w", target, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture %q did not open", target)
	}
	return &gocvStream{vc: vc, mat: gocv.NewMat()}, nil
}

func (s *gocvStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, capture.ErrNoFrame
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (s *gocvStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.vc.Close()
}

package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/menta2k/framecast/pkg/capture"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const maxFrameBytes = 32 << 20

// ffmpegStream keeps the most recent JPEG written by an ffmpeg child process
type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailBuffer
	logger *slog.Logger

	mu     sync.Mutex
	latest []byte
	err    error
	closed bool

	first chan struct{}
	done  chan struct{}
}

func startFFmpeg(ctx context.Context, path string, args []string, startTimeout time.Duration, logger *slog.Logger) (*ffmpegStream, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, args...)
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	s := &ffmpegStream{
		cmd:    cmd,
		cancel: cancel,
		stderr: &tailBuffer{max: 4096},
		logger: logger,
		first:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	go s.readLoop(stdout)

	timer := time.NewTimer(startTimeout)
	defer timer.Stop()

	select {
	case <-s.first:
		return s, nil
	case <-s.done:
		err := s.exitErr()
		s.Close()
		return nil, err
	case <-timer.C:
		s.Close()
		return nil, fmt.Errorf("ffmpeg produced no frame within %s", startTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

func (s *ffmpegStream) readLoop(r io.Reader) {
	var once sync.Once
	err := splitJPEG(r, func(frame []byte) {
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
		once.Do(func() { close(s.first) })
	})

	waitErr := s.cmd.Wait()
	s.mu.Lock()
	switch {
	case s.closed:
		s.err = ErrStreamClosed
	case err != nil:
		s.err = fmt.Errorf("reading ffmpeg output: %w", err)
	case waitErr != nil:
		s.err = fmt.Errorf("ffmpeg exited: %w: %s", waitErr, s.stderr.String())
	default:
		s.err = io.EOF
	}
	s.mu.Unlock()
	close(s.done)
}

func (s *ffmpegStream) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == io.EOF {
		return fmt.Errorf("ffmpeg exited before producing a frame: %s", s.stderr.String())
	}
	return s.err
}

// Frame decodes the latest complete frame. After ffmpeg exits the last
// frame stays available.
func (s *ffmpegStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	data := s.latest
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrStreamClosed
	}
	if data == nil {
		return nil, capture.ErrNoFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Close stops ffmpeg and waits for it to exit
func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.logger.Debug("ffmpeg stopped")
	return nil
}

// splitJPEG calls emit with each complete JPEG found in r
func splitJPEG(r io.Reader, emit func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 256*1024), maxFrameBytes)
	scanner.Split(scanJPEG)
	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())
		emit(frame)
	}
	return scanner.Err()
}

// scanJPEG is a bufio.SplitFunc yielding SOI..EOI byte ranges. Bytes
// outside a frame are skipped.
func scanJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if len(data) < 2 {
			return 0, nil, nil
		}
		// Keep a trailing 0xFF, it may begin the next marker
		return len(data) - 1, nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

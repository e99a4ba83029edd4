// Package capture implements the frame capture client: source selection,
// the settings panel, and the periodic capture-and-send loop whose answers
// accumulate in a ResponseLog.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/menta2k/framecast/pkg/processing"
	"github.com/menta2k/framecast/pkg/types"
)

var (
	ErrAlreadyRunning = errors.New("capture is already running")
	ErrNotRunning     = errors.New("capture is not running")
)

// Options configures a Client. Provider and Sender are required.
type Options struct {
	Provider Provider
	Sender   Sender
	Clock    clock.Clock
	Logger   *slog.Logger

	// Config is the initial configuration; zero value means DefaultConfig
	Config Config

	// JPEGQuality and MaxFrameSize control frame encoding; MaxFrameSize 0 keeps native size
	JPEGQuality  int
	MaxFrameSize int

	// CycleTimeout bounds one capture-and-send cycle; 0 relies on the sender's timeout
	CycleTimeout time.Duration

	// OnResponse is called for every response appended to the log
	OnResponse func(Entry)
}

// Status is a point-in-time view of the client
type Status struct {
	Mode         Mode   `json:"mode"`
	HasPreview   bool   `json:"has_preview"`
	Running      bool   `json:"running"`
	SettingsOpen bool   `json:"settings_open"`
	Config       Config `json:"config"`
	Responses    int    `json:"responses"`
}

// Client owns the active stream, the capture configuration and the capture loop
type Client struct {
	provider     Provider
	sender       Sender
	clock        clock.Clock
	logger       *slog.Logger
	processor    *processing.Processor
	quality      int
	maxFrameSize int
	cycleTimeout time.Duration
	responses    *ResponseLog

	config atomic.Pointer[Config]

	// base is cancelled by Close only; Stop leaves in-flight cycles alone
	base       context.Context
	cancelBase context.CancelFunc

	// cycleMu serializes cycles across loops, so a restart never overlaps
	// the previous loop's in-flight send
	cycleMu sync.Mutex

	mu           sync.Mutex
	active       Mode
	stream       Stream
	selectSeq    uint64
	settingsOpen bool
	loop         *loop
}

type loop struct {
	ticker *clock.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewClient creates an idle client with no source selected
func NewClient(opts Options) (*Client, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("capture: provider is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("capture: sender is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}
	if opts.Config.RefreshInterval <= 0 {
		return nil, fmt.Errorf("capture: %w", ErrInvalidRefreshRate)
	}

	base, cancel := context.WithCancel(context.Background())
	c := &Client{
		provider:     opts.Provider,
		sender:       opts.Sender,
		clock:        opts.Clock,
		logger:       opts.Logger.With("component", "capture-client"),
		processor:    processing.NewProcessor(),
		quality:      opts.JPEGQuality,
		maxFrameSize: opts.MaxFrameSize,
		cycleTimeout: opts.CycleTimeout,
		responses:    NewResponseLog(opts.OnResponse),
		base:         base,
		cancelBase:   cancel,
	}
	cfg := opts.Config
	c.config.Store(&cfg)
	return c, nil
}

// SelectSource makes mode the active toggle and acquires its stream. The
// previous stream is released first. On failure the preview stays unset.
func (c *Client) SelectSource(ctx context.Context, mode Mode) error {
	cons, err := ConstraintsFor(mode)
	if err != nil {
		return err
	}
	if mode == ModeStream {
		return fmt.Errorf("%w: stream mode needs a URL, use SelectStream", ErrUnsupportedMode)
	}
	return c.selectSource(ctx, mode, cons)
}

// SelectStream selects ModeStream reading from url (RTSP, HTTP or a file)
func (c *Client) SelectStream(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("%w: stream mode needs a URL", ErrUnsupportedMode)
	}
	cons, _ := ConstraintsFor(ModeStream)
	cons.URL = url
	return c.selectSource(ctx, ModeStream, cons)
}

func (c *Client) selectSource(ctx context.Context, mode Mode, cons Constraints) error {
	c.mu.Lock()
	c.active = mode
	c.selectSeq++
	seq := c.selectSeq
	previous := c.stream
	c.stream = nil
	c.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			c.logger.Warn("failed to release previous stream", "error", err)
		}
	}

	stream, err := c.provider.Acquire(ctx, mode, cons)
	if err != nil {
		c.logger.Error("error accessing source", "mode", mode, "error", err)
		return fmt.Errorf("error accessing %s: %w", mode, err)
	}

	c.mu.Lock()
	if c.selectSeq != seq {
		// A newer selection won while we were acquiring
		c.mu.Unlock()
		stream.Close()
		return nil
	}
	c.stream = stream
	c.mu.Unlock()

	c.logger.Info("source selected", "mode", mode)
	return nil
}

// ActiveMode returns the selected toggle, empty before the first selection
func (c *Client) ActiveMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Preview returns the active stream or nil
func (c *Client) Preview() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// ToggleSettings opens the settings panel if closed and closes it if open.
// It returns the new visibility.
func (c *Client) ToggleSettings() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settingsOpen = !c.settingsOpen
	return c.settingsOpen
}

// SettingsOpen reports whether the settings panel is visible
func (c *Client) SettingsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settingsOpen
}

// SaveSettings replaces the configuration with the form's values and hides
// the panel. An invalid form changes nothing.
func (c *Client) SaveSettings(form SettingsForm) (Config, error) {
	cfg, err := form.Config()
	if err != nil {
		return Config{}, err
	}
	c.config.Store(&cfg)

	c.mu.Lock()
	c.settingsOpen = false
	c.mu.Unlock()

	c.logger.Info("settings saved", "prompt", cfg.Prompt, "refresh_interval", cfg.RefreshInterval, "api_key_set", cfg.APIKey != "")
	return cfg, nil
}

// Config returns a copy of the current configuration
func (c *Client) Config() Config {
	return *c.config.Load()
}

// Responses returns the response log
func (c *Client) Responses() *ResponseLog {
	return c.responses
}

// Start schedules a capture-and-send cycle every RefreshInterval. The interval
// is read once; later saves change prompt and key for subsequent cycles only.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loop != nil {
		return ErrAlreadyRunning
	}

	interval := c.Config().RefreshInterval
	l := &loop{
		ticker: c.clock.Ticker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.loop = l
	go c.run(l)

	c.logger.Info("capture started", "interval", interval)
	return nil
}

// Stop cancels the schedule. A cycle already sending is allowed to finish
// and still appends its response. Cycles of a later Start wait for it to
// complete.
func (c *Client) Stop() error {
	c.mu.Lock()
	l := c.loop
	c.loop = nil
	c.mu.Unlock()

	if l == nil {
		return ErrNotRunning
	}
	l.ticker.Stop()
	close(l.stop)

	c.logger.Info("capture stopped")
	return nil
}

// Running reports whether the capture loop is scheduled
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop != nil
}

// Status returns a snapshot of the client state
func (c *Client) Status() Status {
	c.mu.Lock()
	s := Status{
		Mode:         c.active,
		HasPreview:   c.stream != nil,
		Running:      c.loop != nil,
		SettingsOpen: c.settingsOpen,
	}
	c.mu.Unlock()

	s.Config = c.Config()
	s.Responses = c.responses.Len()
	return s
}

// Close stops capturing, abandons in-flight requests and releases the stream
func (c *Client) Close() error {
	c.mu.Lock()
	l := c.loop
	c.mu.Unlock()

	if l != nil {
		c.Stop()
	}
	c.cancelBase()
	if l != nil {
		<-l.done
	}
	// a loop stopped earlier may still be finishing its cycle
	c.cycleMu.Lock()
	c.cycleMu.Unlock()

	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream != nil {
		return stream.Close()
	}
	return nil
}

// run executes cycles on one goroutine. Ticks that arrive while a cycle is
// in flight are coalesced by the ticker, so responses append in send order.
func (c *Client) run(l *loop) {
	defer close(l.done)
	defer l.ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.ticker.C:
			c.cycle(l)
		}
	}
}

// cycle runs one capture-and-send for l unless l was stopped while waiting
// for a previous loop's cycle.
func (c *Client) cycle(l *loop) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	select {
	case <-l.stop:
		return
	default:
	}
	c.captureAndSend(c.base)
}

// captureAndSend performs one cycle. Every failure is logged and dropped.
func (c *Client) captureAndSend(ctx context.Context) {
	if c.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cycleTimeout)
		defer cancel()
	}

	c.mu.Lock()
	stream := c.stream
	mode := c.active
	c.mu.Unlock()

	if stream == nil {
		c.logger.Warn("no active source, skipping capture")
		return
	}

	img, err := stream.Frame(ctx)
	if err != nil {
		c.logger.Error("frame capture failed", "mode", mode, "error", err)
		return
	}

	dataURL, err := c.processor.EncodeDataURL(img, c.maxFrameSize, c.quality)
	if err != nil {
		c.logger.Error("frame encode failed", "mode", mode, "error", err)
		return
	}

	// Read at send time so saves made while running apply to this cycle
	cfg := c.Config()
	started := c.clock.Now()
	resp, err := c.sender.Send(ctx, types.ProcessFrameRequest{
		Image:  dataURL,
		Prompt: cfg.Prompt,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		c.logger.Error("error sending frame", "error", err)
		return
	}

	entry := c.responses.Append(resp.Response, c.clock.Now())
	c.logger.Debug("response received", "seq", entry.Seq, "latency", c.clock.Since(started))
}

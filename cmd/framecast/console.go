package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/menta2k/framecast/pkg/capture"
)

const helpText = `commands:
  webcam | screen | app     select a capture source
  stream <url>              capture from an RTSP/HTTP stream or file
  start | stop              start or stop periodic capture
  settings                  show or hide the settings panel
  save                      fill in and save the settings (panel must be open)
  config                    print the current capture settings
  log                       print all responses so far
  status                    print client state
  help                      this text
  quit                      exit`

// console maps typed commands onto the capture client
type console struct {
	client *capture.Client
	in     *bufio.Scanner
	mu     sync.Mutex
	out    io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// printEntry is the response log listener
func (c *console) printEntry(e capture.Entry) {
	c.printf("[%d %s] %s\n", e.Seq, e.At.Format("15:04:05"), e.Text)
}

func (c *console) prompt(label string) (string, bool) {
	c.printf("%s: ", label)
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

// run reads commands until quit, EOF or ctx is done. A blocked read is
// not interrupted by ctx.
func (c *console) run(ctx context.Context) {
	c.printf("type 'help' for commands\n")
	for c.in.Scan() {
		if ctx.Err() != nil || c.handle(ctx, c.in.Text()) {
			return
		}
	}
}

// handle executes one command line and reports whether to quit
func (c *console) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return true

	case "help":
		c.printf("%s\n", helpText)

	case "stream":
		if len(fields) < 2 {
			c.printf("usage: stream <url>\n")
			return false
		}
		if err := c.client.SelectStream(ctx, fields[1]); err != nil {
			c.printf("error: %v\n", err)
			return false
		}
		c.printf("active source: stream\n")

	case "start":
		if err := c.client.Start(); err != nil {
			c.printf("error: %v\n", err)
			return false
		}
		c.printf("capturing every %s\n", c.client.Config().RefreshInterval)

	case "stop":
		if err := c.client.Stop(); err != nil {
			c.printf("error: %v\n", err)
			return false
		}
		c.printf("capture stopped\n")

	case "settings":
		if c.client.ToggleSettings() {
			cfg := c.client.Config()
			c.printf("settings open: prompt=%q refresh=%s api_key=%s (type 'save' to change)\n",
				cfg.Prompt, cfg.RefreshInterval, maskKey(cfg.APIKey))
		} else {
			c.printf("settings closed\n")
		}

	case "save":
		c.save()

	case "config":
		cfg := c.client.Config()
		c.printf("prompt=%q refresh=%s api_key=%s\n", cfg.Prompt, cfg.RefreshInterval, maskKey(cfg.APIKey))

	case "log":
		for _, e := range c.client.Responses().Entries() {
			c.printEntry(e)
		}

	case "status":
		s := c.client.Status()
		mode := string(s.Mode)
		if mode == "" {
			mode = "none"
		}
		c.printf("source=%s preview=%t running=%t settings_open=%t responses=%d\n",
			mode, s.HasPreview, s.Running, s.SettingsOpen, s.Responses)

	default:
		mode, err := capture.ParseMode(cmd)
		if err != nil || mode == capture.ModeStream {
			c.printf("unknown command %q, type 'help'\n", cmd)
			return false
		}
		if err := c.client.SelectSource(ctx, mode); err != nil {
			c.printf("error: %v\n", err)
			return false
		}
		c.printf("active source: %s\n", mode)
	}
	return false
}

// save reads the three settings fields. Empty answers select the defaults.
func (c *console) save() {
	if !c.client.SettingsOpen() {
		c.printf("settings panel is closed, type 'settings' first\n")
		return
	}

	var form capture.SettingsForm
	var ok bool
	if form.Prompt, ok = c.prompt("prompt"); !ok {
		return
	}
	if form.RefreshRate, ok = c.prompt("refresh rate (seconds)"); !ok {
		return
	}
	if form.APIKey, ok = c.prompt("api key"); !ok {
		return
	}

	cfg, err := c.client.SaveSettings(form)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("saved: prompt=%q refresh=%s api_key=%s\n", cfg.Prompt, cfg.RefreshInterval, maskKey(cfg.APIKey))
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(none)"
	case len(key) <= 6:
		return "****"
	}
	return key[:3] + "..." + key[len(key)-2:]
}

package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPrompt          = "Analyze this frame"
	DefaultRefreshInterval = 15 * time.Second
)

// ErrInvalidRefreshRate is returned for refresh rates that are not positive numbers
var ErrInvalidRefreshRate = errors.New("refresh rate must be a positive number of seconds")

// Config is what every capture cycle sends along with the frame
type Config struct {
	Prompt          string        `json:"prompt"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	APIKey          string        `json:"-"`
}

// DefaultConfig returns the configuration in effect before any save
func DefaultConfig() Config {
	return Config{
		Prompt:          DefaultPrompt,
		RefreshInterval: DefaultRefreshInterval,
	}
}

// SettingsForm holds the raw settings fields as typed by the user
type SettingsForm struct {
	Prompt      string
	RefreshRate string // seconds
	APIKey      string
}

// Config converts the form into a Config. Empty prompt and refresh rate fall
// back to the defaults; the API key is taken verbatim.
func (f SettingsForm) Config() (Config, error) {
	cfg := Config{
		Prompt:          f.Prompt,
		RefreshInterval: DefaultRefreshInterval,
		APIKey:          f.APIKey,
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}

	if rate := strings.TrimSpace(f.RefreshRate); rate != "" {
		seconds, err := strconv.ParseFloat(rate, 64)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidRefreshRate, f.RefreshRate)
		}
		cfg.RefreshInterval = time.Duration(seconds * float64(time.Second))
		if cfg.RefreshInterval <= 0 {
			return Config{}, fmt.Errorf("%w: %q", ErrInvalidRefreshRate, f.RefreshRate)
		}
	}
	return cfg, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/framecast/internal/logging"
	"github.com/menta2k/framecast/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Client  ClientConfig  `json:"client"`
	Source  SourceConfig  `json:"source"`
	Server  ServerConfig  `json:"server"`
	Archive ArchiveConfig `json:"archive"`
	History HistoryConfig `json:"history"`
	Log     LogConfig     `json:"log"`
}

// ClientConfig holds the capture client settings
type ClientConfig struct {
	BackendURL     string  `json:"backend_url"`
	Prompt         string  `json:"prompt"`
	RefreshSeconds float64 `json:"refresh_seconds"`
	APIKey         string  `json:"api_key,omitempty"`
	JPEGQuality    int     `json:"jpeg_quality"`
	MaxFrameSize   int     `json:"max_frame_size"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// SourceConfig selects capture devices
type SourceConfig struct {
	FFmpegPath   string `json:"ffmpeg_path"`
	Backend      string `json:"backend"`
	WebcamDevice string `json:"webcam_device,omitempty"`
	Window       string `json:"window,omitempty"`
	Display      int    `json:"display"`
	FrameRate    int    `json:"frame_rate"`
}

// ServerConfig holds the backend settings
type ServerConfig struct {
	Addr        string `json:"addr"`
	Backend     string `json:"backend"` // ollama or openai
	Model       string `json:"model"`
	OllamaURL   string `json:"ollama_url"`
	OpenAIURL   string `json:"openai_url"`
	APIKey      string `json:"api_key,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	MaxTokens   int    `json:"max_tokens"`
	MaxImageDim int    `json:"max_image_dim"`
	JPEGQuality int    `json:"jpeg_quality"`
	Mirror      bool   `json:"mirror"`
}

// ArchiveConfig controls saving received frames
type ArchiveConfig struct {
	Enabled  bool   `json:"enabled"`
	Dir      string `json:"dir"`
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
}

// HistoryConfig controls the Postgres analysis history
type HistoryConfig struct {
	Enabled     bool   `json:"enabled"`
	DatabaseURL string `json:"database_url,omitempty"`
	EmbedModel  string `json:"embed_model"`
	Dimensions  int    `json:"dimensions"`
}

// LogConfig selects log level and format (text or json)
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			BackendURL:     "http://localhost:8000",
			Prompt:         "Analyze this frame",
			RefreshSeconds: 15,
			JPEGQuality:    92,
			TimeoutSeconds: 120,
		},
		Source: SourceConfig{
			FFmpegPath: "ffmpeg",
			Backend:    "ffmpeg",
			FrameRate:  2,
		},
		Server: ServerConfig{
			Addr:        ":8000",
			Backend:     "ollama",
			Model:       "llava",
			OllamaURL:   "http://localhost:11434",
			OpenAIURL:   "https://api.openai.com",
			MaxTokens:   300,
			MaxImageDim: 1024,
			JPEGQuality: 92,
		},
		Archive: ArchiveConfig{
			Dir:     "./data",
			Format:  "jpeg",
			Quality: 90,
		},
		History: HistoryConfig{
			EmbedModel: "nomic-embed-text",
			Dimensions: 768,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename if it exists and returns defaults otherwise
func Load(filename string) (*Config, error) {
	if !utils.FileExists(filename) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// May hold API keys
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
// FRAMECAST_API_KEY wins over OPENAI_API_KEY for both client and server.
func (c *Config) ApplyEnv() {
	key := os.Getenv("FRAMECAST_API_KEY")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key != "" {
		c.Client.APIKey = key
		c.Server.APIKey = key
	}
	if v := os.Getenv("FRAMECAST_BACKEND_URL"); v != "" {
		c.Client.BackendURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.History.DatabaseURL = v
	}
}

// RefreshInterval returns Client.RefreshSeconds as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Client.RefreshSeconds * float64(time.Second))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !isHTTPURL(c.Client.BackendURL) {
		return fmt.Errorf("client.backend_url must be an http(s) URL")
	}

	if c.Client.RefreshSeconds <= 0 {
		return fmt.Errorf("client.refresh_seconds must be positive")
	}

	if c.Client.JPEGQuality < 1 || c.Client.JPEGQuality > 100 {
		return fmt.Errorf("client.jpeg_quality must be between 1 and 100")
	}

	if c.Client.MaxFrameSize < 0 {
		return fmt.Errorf("client.max_frame_size cannot be negative")
	}

	switch c.Source.Backend {
	case "ffmpeg", "gocv":
	default:
		return fmt.Errorf("source.backend must be ffmpeg or gocv")
	}

	if c.Source.FrameRate < 1 {
		return fmt.Errorf("source.frame_rate must be positive")
	}

	switch c.Server.Backend {
	case "ollama":
		if !isHTTPURL(c.Server.OllamaURL) {
			return fmt.Errorf("server.ollama_url must be an http(s) URL")
		}
	case "openai":
		if !isHTTPURL(c.Server.OpenAIURL) {
			return fmt.Errorf("server.openai_url must be an http(s) URL")
		}
	default:
		return fmt.Errorf("server.backend must be ollama or openai")
	}

	if c.Server.Model == "" {
		return fmt.Errorf("server.model cannot be empty")
	}

	if c.Server.JPEGQuality < 1 || c.Server.JPEGQuality > 100 {
		return fmt.Errorf("server.jpeg_quality must be between 1 and 100")
	}

	if c.Archive.Enabled {
		switch strings.ToLower(c.Archive.Format) {
		case "jpg", "jpeg", "png", "webp":
		default:
			return fmt.Errorf("archive.format must be jpeg, png or webp")
		}
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir cannot be empty")
		}
	}

	if c.History.Enabled {
		if c.History.DatabaseURL == "" {
			return fmt.Errorf("history.database_url is required when history is enabled")
		}
		if c.History.Dimensions < 1 {
			return fmt.Errorf("history.dimensions must be positive")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "framecast", "config.json")
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

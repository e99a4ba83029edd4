package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/menta2k/framecast"
	"github.com/menta2k/framecast/internal/config"
	"github.com/menta2k/framecast/internal/logging"
	"github.com/menta2k/framecast/pkg/capture"
)

func main() {
	var configPath, backendURL, prompt, mode, streamURL, window, logLevel, logFormat string
	var refresh float64
	var autostart, saveConfig, showVersion bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file path")
	flag.StringVar(&backendURL, "backend", "", "backend base URL (overrides config)")
	flag.StringVar(&prompt, "prompt", "", "initial prompt (overrides config)")
	flag.Float64Var(&refresh, "refresh", 0, "initial refresh interval in seconds (overrides config)")
	flag.StringVar(&mode, "source", "", "source to select at startup: webcam|screen|app")
	flag.StringVar(&streamURL, "stream", "", "stream URL to select at startup (rtsp/http/file)")
	flag.StringVar(&window, "window", "", "window to capture in app mode (X11 id or window title)")
	flag.BoolVar(&autostart, "start", false, "start capturing right after the source is selected")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.StringVar(&logFormat, "log-format", "", "log format: text|json")
	flag.BoolVar(&saveConfig, "save-config", false, "write the effective config to -config and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("framecast", framecast.GetVersion())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyEnv()
	if backendURL != "" {
		cfg.Client.BackendURL = backendURL
	}
	if prompt != "" {
		cfg.Client.Prompt = prompt
	}
	if refresh > 0 {
		cfg.Client.RefreshSeconds = refresh
	}
	if window != "" {
		cfg.Source.Window = window
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if saveConfig {
		if err := cfg.SaveToFile(configPath); err != nil {
			log.Fatal(err)
		}
		fmt.Println("config written to", configPath)
		return
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := newConsole(os.Stdin, os.Stdout)
	client, err := framecast.NewClient(cfg, logger, framecast.ClientOptions{OnResponse: con.printEntry})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	con.client = client

	switch {
	case streamURL != "":
		err = client.SelectStream(ctx, streamURL)
	case mode != "":
		var m capture.Mode
		if m, err = capture.ParseMode(mode); err == nil {
			err = client.SelectSource(ctx, m)
		}
	}
	if err != nil {
		logger.Error("initial source selection failed", "error", err)
	}
	if autostart {
		if err := client.Start(); err != nil {
			logger.Error("failed to start capture", "error", err)
		}
	}

	logger.Info("framecast ready", "backend", cfg.Client.BackendURL, "version", framecast.Version)
	done := make(chan struct{})
	go func() {
		con.run(ctx)
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}

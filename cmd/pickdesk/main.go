// Command pickdesk is a terminal client for working through a picking batch.
// It keeps the batch list in sync with the server over a websocket and
// offers picking, missing flags, set reservations and assisted picking.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ramonehamilton/pickdesk/internal/app"
	"github.com/ramonehamilton/pickdesk/internal/config"
	"github.com/ramonehamilton/pickdesk/internal/ui"
	"github.com/ramonehamilton/pickdesk/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default: ~/.pickdesk/config.toml)")
	server := flag.String("server", "", "batch server base URL")
	batch := flag.String("batch", "", "batch id to display")
	user := flag.String("user", "", "basic auth user")
	password := flag.String("password", "", "basic auth password")
	prefsPath := flag.String("prefs", "", "preferences database path")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("pickdesk", version.GetVersion())
		return 0
	}

	path := *configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			fmt.Fprintf(os.Stderr, "pickdesk: %v\n", err)
			return 1
		}
		path = p
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pickdesk: %v\n", err)
		return 1
	}

	if *server != "" {
		cfg.Server.BaseURL = *server
	}
	if *batch != "" {
		cfg.Server.BatchID = *batch
	}
	if *user != "" {
		cfg.Server.Username = *user
	}
	if *password != "" {
		cfg.Server.Password = *password
	}
	if *prefsPath != "" {
		cfg.Prefs.DBPath = *prefsPath
	}
	if *debug {
		cfg.App.DebugMode = true
	}

	logger, closeLog, err := openLog(cfg.App.DebugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pickdesk: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	desk, err := app.New(app.Options{Config: cfg, ConfigPath: path, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pickdesk: %v\n", err)
		return 1
	}

	logger.Info("Starting pickdesk", "version", version.GetVersion(), "server", cfg.Server.BaseURL, "batch", cfg.Server.BatchID)
	desk.Start(ctx)

	uiErr := ui.Run(ctx, desk)
	cancel()
	if err := desk.Close(); err != nil {
		logger.Warn("Shutdown failed", "error", err)
	}

	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pickdesk: %v\n", uiErr)
		return 1
	}
	return 0
}

// openLog writes JSON logs to ~/.pickdesk/pickdesk.log; the terminal belongs to the UI.
func openLog(debug bool) (*slog.Logger, func(), error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "pickdesk.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { _ = f.Close() }, nil
}

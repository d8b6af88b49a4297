// Package main is the entry point for the ZIPHUB server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (YAML file, then environment)
//  2. Create the logger
//  3. Start the application
//
// All actual logic lives in internal/server and the packages it wires.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/ziphub/internal/config"
	"github.com/sakif/ziphub/internal/logging"
	"github.com/sakif/ziphub/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ziphub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. READ CONFIGURATION ===
	// -config or CONFIG_FILE names an optional YAML file; env vars override it.
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	// === 2. SET UP LOGGING ===
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	// server.New opens the store and bootstraps the creator account before
	// any request is served.
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM, then closes the store.
	return srv.Start()
}

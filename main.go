package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chazu/pickandpaint/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to a .toml or .yaml config file")
	scriptPath := flag.String("script", "", "landmark script to evaluate (default: stdin)")
	locator := flag.String("locator", "", "nearest-vertex strategy: brute or rtree")
	radius := flag.Int("radius", 0, "default ROI radius of new landmarks")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	if err := run(*configPath, *scriptPath, config.Flags{
		Locator:  *locator,
		LogLevel: *logLevel,
		Radius:   *radius,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "pickandpaint:", err)
		os.Exit(1)
	}
}

func run(configPath, scriptPath string, flags config.Flags) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Resolve(flags)

	level, err := cfg.SlogLevel()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	app.startup(context.Background())

	var source []byte
	if scriptPath != "" {
		source, err = os.ReadFile(scriptPath)
	} else {
		source, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	result := app.Evaluate(string(source))
	for _, w := range result.Warnings {
		logger.Warn(w.Message, "mesh", w.Mesh, "landmark", w.Landmark)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d evaluation error(s)", len(result.Errors))
	}
	return nil
}

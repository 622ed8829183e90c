package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/moorhq/moor/build"
)

func runBuild(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	var (
		configPath string
		outputDir  string
		origin     string
		keyPath    string
		mode       string
		appVersion string
		entryFlag  string
		staticDir  string
	)
	fs.StringVar(&configPath, "config", ".moor.yaml", "path to build configuration")
	fs.StringVar(&outputDir, "out", "", "output directory (overrides config)")
	fs.StringVar(&origin, "origin", "", "canonical origin URL (overrides config)")
	fs.StringVar(&keyPath, "key", "", "PEM Ed25519 private key (overrides config; empty = unsigned dev build)")
	fs.StringVar(&mode, "mode", "", "update mode: locked or auto (overrides config)")
	fs.StringVar(&appVersion, "app-version", "", "manifest version string (overrides config)")
	fs.StringVar(&entryFlag, "entry", "", "comma-separated entrypoint files (overrides config)")
	fs.StringVar(&staticDir, "static", "", "static files directory (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := build.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		return 2
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if origin != "" {
		cfg.Origin = origin
	}
	if keyPath != "" {
		cfg.PrivateKeyPath = keyPath
	}
	if mode != "" {
		cfg.UpdateMode = mode
	}
	if appVersion != "" {
		cfg.Version = appVersion
	}
	if entryFlag != "" {
		cfg.Entrypoints = strings.Split(entryFlag, ",")
	}
	if staticDir != "" {
		cfg.StaticDir = staticDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arts, err := build.NewPipeline(cfg, build.WithLogger(logger)).Run(ctx)
	if err != nil {
		var stepErr *build.StepError
		if errors.As(err, &stepErr) {
			fmt.Fprintf(os.Stderr, "error: step %s: %v\n", stepErr.Step, stepErr.Err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 2
	}

	fmt.Printf("built %s (%d resources, mode %s)\n", cfg.OutputDir, len(arts.Manifest.Resources), arts.Anchor.UpdateMode)
	fmt.Printf("bootstrap: %s\n", arts.BootstrapName)
	fmt.Printf("manifest digest: %s\n", arts.CanonicalDigest.Hex)
	if arts.Unsigned {
		fmt.Fprintln(os.Stderr, "WARNING: unsigned development build - clients cannot authenticate this deployment")
	}
	fmt.Printf("install bookmarklet:\n%s\n", arts.Anchor.Bookmarklet())
	return 0
}

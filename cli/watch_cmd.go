package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/moorhq/moor/build"
	"github.com/moorhq/moor/cli/tui"
)

func runWatch(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var (
		configPath string
		debounce   time.Duration
		plain      bool
	)
	fs.StringVar(&configPath, "config", ".moor.yaml", "path to build configuration")
	fs.DurationVar(&debounce, "debounce", 500*time.Millisecond, "debounce interval for file changes")
	fs.BoolVar(&plain, "plain", false, "plain output instead of the live dashboard")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := build.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating watcher: %v\n", err)
		return 2
	}
	defer watcher.Close()

	for _, entry := range cfg.Entrypoints {
		if err := watcher.Add(filepath.Dir(entry)); err != nil {
			fmt.Fprintf(os.Stderr, "error: watching %s: %v\n", entry, err)
			return 2
		}
	}
	if cfg.StaticDir != "" {
		if err := addDirsRecursive(watcher, cfg.StaticDir); err != nil {
			fmt.Fprintf(os.Stderr, "error: watching %s: %v\n", cfg.StaticDir, err)
			return 2
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := build.NewPipeline(cfg, build.WithLogger(logger))

	if plain || !stdoutIsTerminal() {
		return watchPlain(ctx, watcher, pipeline, cfg, debounce)
	}
	return watchTUI(ctx, watcher, pipeline, cfg, debounce)
}

// watchPlain is the non-interactive rebuild loop.
func watchPlain(ctx context.Context, watcher *fsnotify.Watcher, pipeline *build.Pipeline, cfg *build.Config, debounce time.Duration) int {
	rebuild := func() {
		start := time.Now()
		if _, err := pipeline.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "watch: build failed: %v\n", err)
			return
		}
		fmt.Printf("watch: rebuilt %s in %s\n", cfg.OutputDir, time.Since(start).Round(time.Millisecond))
	}

	fmt.Printf("watch: building %s (debounce: %s)\n", cfg.OutputDir, debounce)
	rebuild()

	var mu sync.Mutex
	var timer *time.Timer
	resetTimer := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, rebuild)
	}

	for {
		select {
		case <-ctx.Done():
			return 0
		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if isRelevant(event, cfg.OutputDir) {
				resetTimer()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

// watchTUI runs the live dashboard, feeding it build events from the
// debounced rebuild loop.
func watchTUI(ctx context.Context, watcher *fsnotify.Watcher, pipeline *build.Pipeline, cfg *build.Config, debounce time.Duration) int {
	program := tea.NewProgram(tui.New(cfg.OutputDir))

	rebuild := func() {
		program.Send(tui.BuildStartedMsg{At: time.Now()})
		start := time.Now()
		arts, err := pipeline.Run(ctx)
		msg := tui.BuildFinishedMsg{Duration: time.Since(start), Err: err}
		if err == nil {
			msg.Version = arts.Manifest.Version
			msg.Resources = len(arts.Manifest.Resources)
			msg.ManifestDigest = arts.CanonicalDigest.Hex
			msg.Unsigned = arts.Unsigned
		}
		program.Send(msg)
	}

	go func() {
		rebuild()

		var mu sync.Mutex
		var timer *time.Timer
		resetTimer := func() {
			mu.Lock()
			defer mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, rebuild)
		}

		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					program.Quit()
					return
				}
				if isRelevant(event, cfg.OutputDir) {
					resetTimer()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					program.Quit()
					return
				}
				program.Send(tui.WatchErrorMsg{Err: err})
			}
		}
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

// isRelevant filters watcher noise: only content changes matter, and changes
// inside the output directory are our own writes.
func isRelevant(event fsnotify.Event, outputDir string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return true
	}
	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(outAbs, abs)
	if err != nil {
		return true
	}
	return len(rel) >= 2 && rel[:2] == ".."
}

// addDirsRecursive watches root and all directories beneath it.
func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

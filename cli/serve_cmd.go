package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moorhq/moor/server"
)

func runServe(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		addr    string
		dir     string
		latency time.Duration
	)
	fs.StringVar(&addr, "addr", "localhost:8710", "listen address")
	fs.StringVar(&dir, "dir", "dist", "build output directory to serve")
	fs.DurationVar(&latency, "latency", 0, "artificial per-request latency")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(dir, server.WithLogger(logger), server.WithLatency(latency))
	fmt.Printf("serving %s on http://%s\n", dir, addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

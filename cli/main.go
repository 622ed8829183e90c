// Package main is the entry point for the moor CLI.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the exit code.
// 0 = success, 1 = verification/trust failure, 2 = error.
func run(args []string) int {
	fs := flag.NewFlagSet("moor", flag.ContinueOnError)

	var (
		verboseFlag bool
		versionFlag bool
	)
	fs.BoolVar(&verboseFlag, "verbose", false, "enable verbose output")
	fs.BoolVar(&verboseFlag, "v", false, "enable verbose output (shorthand)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: moor <command> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  build    Build a signed deployment (manifest, bootstrap, trust anchor)\n")
		fmt.Fprintf(os.Stderr, "  keygen   Generate an Ed25519 signing keypair\n")
		fmt.Fprintf(os.Stderr, "  anchor   Re-assemble a trust anchor from an existing build\n")
		fmt.Fprintf(os.Stderr, "  verify   Run the bootstrap verification sequence against an origin\n")
		fmt.Fprintf(os.Stderr, "  serve    Serve a build output directory for local testing\n")
		fmt.Fprintf(os.Stderr, "  watch    Rebuild on source changes\n")
		fmt.Fprintf(os.Stderr, "  version  Print version and exit\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if versionFlag {
		fmt.Printf("moor %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}

	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	remaining := fs.Args()
	if len(remaining) == 0 {
		fs.Usage()
		return 2
	}

	command := remaining[0]
	cmdArgs := remaining[1:]
	switch command {
	case "build":
		return runBuild(cmdArgs, logger)
	case "keygen":
		return runKeygen(cmdArgs)
	case "anchor":
		return runAnchor(cmdArgs)
	case "verify":
		return runVerify(cmdArgs, logger)
	case "serve":
		return runServe(cmdArgs, logger)
	case "watch":
		return runWatch(cmdArgs, logger)
	case "version":
		fmt.Printf("moor %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n\n", command)
		fs.Usage()
		return 2
	}
}

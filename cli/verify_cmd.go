package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/moorhq/moor/anchor"
	"github.com/moorhq/moor/trust"
	"github.com/moorhq/moor/verifier"
)

// runVerify drives the bootstrap verification sequence from the command
// line, standing in for the browser-side bootstrap. It is the operator's way
// to check what a client installation would accept.
func runVerify(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var (
		anchorPath  string
		origin      string
		pubkeyPath  string
		mode        string
		pin         string
		unsignedOK  bool
		timeout     time.Duration
		concurrency int
	)
	fs.StringVar(&anchorPath, "anchor", "", "trust anchor JSON file (supplies origin, mode and pin)")
	fs.StringVar(&origin, "origin", "", "origin URL to verify (when no anchor file is given)")
	fs.StringVar(&pubkeyPath, "pubkey", "", "PEM Ed25519 public key (the embedded-key stand-in)")
	fs.StringVar(&mode, "mode", "auto", "update mode: locked or auto")
	fs.StringVar(&pin, "pin", "", "pinned canonical manifest digest hex (locked mode)")
	fs.BoolVar(&unsignedOK, "allow-unsigned", false, "accept unsigned manifests (dev mode, loud)")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "per-fetch timeout")
	fs.IntVar(&concurrency, "concurrency", 4, "parallel resource fetches")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if anchorPath != "" {
		data, err := os.ReadFile(anchorPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading anchor: %v\n", err)
			return 2
		}
		a, err := anchor.DecodeJSON(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		origin = a.Origin
		mode = string(a.UpdateMode)
		pin = a.ManifestDigestHex
	}
	if origin == "" {
		fmt.Fprintln(os.Stderr, "error: -origin or -anchor is required")
		return 2
	}

	opts := []verifier.Option{
		verifier.WithLogger(logger),
		verifier.WithFetcher(verifier.NewHTTPFetcher(verifier.WithTimeout(timeout))),
		verifier.WithConcurrency(concurrency),
		verifier.WithTransitions(func(s verifier.State) {
			fmt.Printf("%s %s\n", styled(styleState, "->"), s)
		}),
	}

	if pubkeyPath != "" {
		pub, err := trust.LoadPublicKey(pubkeyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		opts = append(opts, verifier.WithPublicKey(pub))
	} else if unsignedOK {
		opts = append(opts, verifier.WithAllowUnsigned())
	}

	if mode == "locked" {
		if pin == "" {
			fmt.Fprintln(os.Stderr, "error: locked mode requires -pin or a locked anchor")
			return 2
		}
		opts = append(opts, verifier.WithLockedPin(pin))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manifestURL := strings.TrimSuffix(origin, "/") + "/manifest.json"
	res, err := verifier.New(manifestURL, opts...).Run(ctx)
	if err != nil {
		if verifier.IsIntegrityFailure(err) {
			fmt.Printf("%s %v\n", styled(styleIntegrity, "INTEGRITY FAILURE:"), err)
			fmt.Println(styled(styleIntegrity, "content did not verify - possible tampering"))
		} else {
			fmt.Printf("%s %v\n", styled(styleNetwork, "unreachable:"), err)
		}
		return 1
	}

	if res.Unsigned {
		fmt.Println(styled(styleWarn, "WARNING: unsigned manifest accepted (dev mode)"))
	}
	fmt.Printf("%s version %s, %d resources verified\n",
		styled(styleOK, "OK:"), res.Manifest.Version, len(res.Resources))
	return 0
}

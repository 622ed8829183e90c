package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moorhq/moor/anchor"
	"github.com/moorhq/moor/manifest"
	"github.com/moorhq/moor/trust"
)

// runAnchor re-assembles a trust anchor from an already built output
// directory, e.g. to issue a locked-mode anchor for a deployment that was
// built in auto mode.
func runAnchor(args []string) int {
	fs := flag.NewFlagSet("anchor", flag.ContinueOnError)
	var (
		dir    string
		origin string
		mode   string
		out    string
	)
	fs.StringVar(&dir, "dir", "dist", "build output directory")
	fs.StringVar(&origin, "origin", "", "canonical origin URL")
	fs.StringVar(&mode, "mode", "auto", "update mode: locked or auto")
	fs.StringVar(&out, "out", "", "write anchor JSON to file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if origin == "" {
		fmt.Fprintln(os.Stderr, "error: -origin is required")
		return 2
	}

	updateMode, err := anchor.ParseMode(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	matches, err := filepath.Glob(filepath.Join(dir, "bootstrap.*.js"))
	if err != nil || len(matches) != 1 {
		fmt.Fprintf(os.Stderr, "error: expected exactly one bootstrap artifact in %s, found %d\n", dir, len(matches))
		return 2
	}
	bootstrap, err := os.ReadFile(matches[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	bootstrapDigest := trust.ComputeDigest(bootstrap)

	var pin *trust.Digest
	if updateMode == anchor.ModeLocked {
		manData, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading manifest: %v\n", err)
			return 2
		}
		man, err := manifest.Parse(manData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		digest, err := man.CanonicalDigest()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		pin = &digest
	}

	bootstrapURL := strings.TrimSuffix(origin, "/") + "/" + filepath.Base(matches[0])
	a, err := anchor.Assemble(origin, bootstrapURL, bootstrapDigest, updateMode, pin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	data, err := a.EncodeJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	} else {
		os.Stdout.Write(data)
	}
	fmt.Printf("install bookmarklet:\n%s\n", a.Bookmarklet())
	return 0
}

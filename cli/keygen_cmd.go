package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/moorhq/moor/trust"
)

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	var (
		dir  string
		name string
	)
	fs.StringVar(&dir, "dir", ".", "directory to write key files into")
	fs.StringVar(&name, "name", "moor-signing", "base name for <name>.key and <name>.pub")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pub, priv, err := trust.GenerateKeypair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if err := trust.SaveKeypair(dir, name, pub, priv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	fmt.Printf("wrote %s/%s.key (private, keep offline) and %s/%s.pub\n", dir, name, dir, name)
	fmt.Printf("fingerprint: %s\n", trust.KeyFingerprint(pub))
	return 0
}

package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Bundler turns application sources into named resources: a map from
// origin-absolute path ("/app.js") to content bytes. The bundler is a
// collaborator boundary; anything that can produce such a map can feed the
// pipeline.
type Bundler interface {
	Bundle(ctx context.Context) (map[string][]byte, error)
}

// DirBundler reads entrypoint files plus an optional static directory tree.
// Entrypoints land at "/<basename>"; static files keep their path relative
// to the static root.
type DirBundler struct {
	Entrypoints []string
	StaticDir   string
}

// Bundle implements Bundler.
func (b *DirBundler) Bundle(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte)

	add := func(path string, data []byte) error {
		if existing, ok := out[path]; ok && string(existing) != string(data) {
			return fmt.Errorf("resource path collision at %q", path)
		}
		out[path] = data
		return nil
	}

	for _, entry := range b.Entrypoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(entry)
		if err != nil {
			return nil, fmt.Errorf("reading entrypoint: %w", err)
		}
		if err := add("/"+filepath.Base(entry), data); err != nil {
			return nil, err
		}
	}

	if b.StaticDir != "" {
		err := filepath.WalkDir(b.StaticDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(b.StaticDir, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading static file: %w", err)
			}
			return add("/"+filepath.ToSlash(rel), data)
		})
		if err != nil {
			return nil, err
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("bundle produced no resources")
	}
	return out, nil
}

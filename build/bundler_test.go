package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDirBundler(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "src", "app.js"), "app code")
	writeTestFile(t, filepath.Join(dir, "public", "index.html"), "<html>")
	writeTestFile(t, filepath.Join(dir, "public", "css", "style.css"), "body{}")

	b := &DirBundler{
		Entrypoints: []string{filepath.Join(dir, "src", "app.js")},
		StaticDir:   filepath.Join(dir, "public"),
	}

	blobs, err := b.Bundle(context.Background())
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	want := map[string]string{
		"/app.js":        "app code",
		"/index.html":    "<html>",
		"/css/style.css": "body{}",
	}
	if len(blobs) != len(want) {
		t.Fatalf("len(blobs) = %d, want %d: %v", len(blobs), len(want), blobs)
	}
	for path, content := range want {
		if string(blobs[path]) != content {
			t.Errorf("blobs[%q] = %q, want %q", path, blobs[path], content)
		}
	}
}

func TestDirBundlerMissingEntrypoint(t *testing.T) {
	b := &DirBundler{Entrypoints: []string{filepath.Join(t.TempDir(), "missing.js")}}
	if _, err := b.Bundle(context.Background()); err == nil {
		t.Error("expected error for missing entrypoint")
	}
}

func TestDirBundlerCollision(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "src", "app.js"), "one")
	writeTestFile(t, filepath.Join(dir, "public", "app.js"), "two")

	b := &DirBundler{
		Entrypoints: []string{filepath.Join(dir, "src", "app.js")},
		StaticDir:   filepath.Join(dir, "public"),
	}
	if _, err := b.Bundle(context.Background()); err == nil {
		t.Error("expected collision error")
	}
}

func TestDirBundlerEmpty(t *testing.T) {
	b := &DirBundler{StaticDir: t.TempDir()}
	if _, err := b.Bundle(context.Background()); err == nil {
		t.Error("expected error for empty bundle")
	}
}

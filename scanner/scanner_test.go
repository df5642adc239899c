package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/srnarasim/dataprism-tooling/model"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "core.min.js", []byte("0123456789"))
	writeFile(t, dir, "app.wasm", []byte{0x00, 0x61, 0x73, 0x6d})

	bundle, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bundle.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(bundle.Files))
	}
	if bundle.TotalSize != 14 {
		t.Errorf("TotalSize = %d, want 14", bundle.TotalSize)
	}

	// Sorted path order: app.wasm before core.min.js.
	if bundle.Files[0].Path != "app.wasm" || bundle.Files[1].Path != "core.min.js" {
		t.Errorf("unexpected order: %q, %q", bundle.Files[0].Path, bundle.Files[1].Path)
	}

	wasm := bundle.File("app.wasm")
	if wasm.MimeType != "application/wasm" {
		t.Errorf("wasm MimeType = %q", wasm.MimeType)
	}
	js := bundle.File("core.min.js")
	if js.MimeType != "application/javascript" {
		t.Errorf("js MimeType = %q", js.MimeType)
	}
	for _, f := range bundle.Files {
		if len(f.Hash) != 96 {
			t.Errorf("%s: hash length %d, want 96 hex chars", f.Path, len(f.Hash))
		}
	}
}

func TestScanHashVector(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.js", nil)

	bundle, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// SHA-384 of the empty input.
	const want = "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b"
	if got := bundle.Files[0].Hash; got != want {
		t.Errorf("Hash = %s, want %s", got, want)
	}
}

func TestScanMissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), Options{})
	if !errors.Is(err, model.ErrDirectoryNotFound) {
		t.Errorf("err = %v, want ErrDirectoryNotFound", err)
	}

	// A file is not a scannable root either.
	dir := t.TempDir()
	writeFile(t, dir, "file.js", []byte("x"))
	if _, err := Scan(filepath.Join(dir, "file.js"), Options{}); !errors.Is(err, model.ErrDirectoryNotFound) {
		t.Errorf("err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestScanNestedForwardSlash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("plugins", "charts-plugin.min.js"), []byte("export{}"))

	bundle, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if bundle.Files[0].Path != "plugins/charts-plugin.min.js" {
		t.Errorf("Path = %q, want forward slashes", bundle.Files[0].Path)
	}
}

func TestScanFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "core.min.js", []byte("a"))
	writeFile(t, dir, "core.min.js.map", []byte("b"))
	writeFile(t, dir, filepath.Join(".git", "HEAD"), []byte("ref"))

	bundle, err := Scan(dir, Options{
		Include: []string{"**/*.js", "**/*.wasm"},
		Exclude: []string{"**/.git/**"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bundle.Files) != 1 || bundle.Files[0].Path != "core.min.js" {
		t.Errorf("filters not applied: %+v", bundle.Files)
	}

	// Exclude wins over include.
	bundle, err = Scan(dir, Options{
		Include: []string{"**/*.js"},
		Exclude: []string{"core.min.js"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bundle.Files) != 0 {
		t.Errorf("exclude must win over include: %+v", bundle.Files)
	}
}

func TestScanSkipsIrregularFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.js", []byte("ok"))
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "dangling.js")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	bundle, err := Scan(dir, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(bundle.Files) != 1 || bundle.Files[0].Path != "good.js" {
		t.Errorf("dangling symlink should be skipped: %+v", bundle.Files)
	}
}

package model

import (
	"strings"
	"testing"
	"time"
)

func TestMimeTypeFor(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"dataprism-core.min.js", "application/javascript"},
		{"loader.mjs", "application/javascript"},
		{"engine.WASM", "application/wasm"},
		{"manifest.json", "application/json"},
		{"core.js.map", "application/json"},
		{"styles.css", "text/css"},
		{"index.html", "text/html"},
		{"README.md", "text/markdown"},
		{"notes.txt", "text/plain"},
		{"logo.svg", "image/svg+xml"},
		{"icon.png", "image/png"},
		{"favicon.ico", "image/x-icon"},
		{"inter.woff2", "font/woff2"},
		{"archive.tar.gz", "application/octet-stream"},
		{"LICENSE", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MimeTypeFor(tc.name); got != tc.want {
			t.Errorf("MimeTypeFor(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNewBundleTotalSize(t *testing.T) {
	b := NewBundle([]AssetFile{
		{Path: "core.min.js", Size: 10},
		{Path: "app.wasm", Size: 4},
	})
	if b.TotalSize != 14 {
		t.Errorf("TotalSize = %d, want 14", b.TotalSize)
	}
	if got := b.File("app.wasm"); got == nil || got.Size != 4 {
		t.Errorf("File(app.wasm) = %+v, want size 4", got)
	}
	if b.File("missing.js") != nil {
		t.Error("File(missing.js) should be nil")
	}
}

func TestNewDeploymentID(t *testing.T) {
	id := NewDeploymentID()
	if !strings.HasPrefix(id, "deploy_") {
		t.Fatalf("id %q missing deploy_ prefix", id)
	}
	if !IsDeploymentID(id) {
		t.Errorf("IsDeploymentID(%q) = false, want true", id)
	}
	if other := NewDeploymentID(); other == id {
		t.Errorf("two IDs collided: %q", id)
	}
}

func TestIsDeploymentID(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"deploy_1712345678901_a1b2c3", true},
		{"deploy_1_abcdef", true},
		{"dry-run", false},
		{"deploy_abc_a1b2c3", false},
		{"deploy_1712345678901_toolong", false},
		{"deploy_1712345678901", false},
		{"release_1712345678901_a1b2c3", false},
	}
	for _, tc := range cases {
		if got := IsDeploymentID(tc.in); got != tc.want {
			t.Errorf("IsDeploymentID(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidationResultCounters(t *testing.T) {
	var r ValidationResult
	r.Add(ValidationCheck{Name: "connectivity", Status: CheckPassed})
	r.Add(ValidationCheck{Name: "cache-headers", Status: CheckWarning})
	r.Add(ValidationCheck{Name: "wasm-mime", Status: CheckPassed})

	if r.Passed != 2 || r.Warnings != 1 || r.Failed != 0 {
		t.Errorf("counters = %d/%d/%d, want 2/1/0", r.Passed, r.Warnings, r.Failed)
	}

	r.Finalize(false)
	if !r.Success {
		t.Error("normal policy: warnings should not fail the run")
	}
	r.Finalize(true)
	if r.Success {
		t.Error("strict policy: warnings must fail the run")
	}
}

func TestValidationResultFailedAlwaysFails(t *testing.T) {
	var r ValidationResult
	r.Add(ValidationCheck{Name: "manifest", Status: CheckFailed})
	r.Finalize(false)
	if r.Success {
		t.Error("failed check must fail even under normal policy")
	}
}

func TestParsePluginLoaderManifest(t *testing.T) {
	good := `{
		"version": "1.2.0",
		"timestamp": "2025-06-01T12:00:00Z",
		"baseUrl": "https://srnarasim.github.io/dataprism-cdn",
		"plugins": [{"id": "charts", "name": "charts", "entry": "charts-plugin.min.js"}],
		"categories": ["visualization"],
		"compatibility": {"browsers": {"chrome": ">=90"}, "features": ["webassembly"]}
	}`
	m, err := ParsePluginLoaderManifest([]byte(good))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Plugins) != 1 || m.Plugins[0].Entry != "charts-plugin.min.js" {
		t.Errorf("unexpected plugins: %+v", m.Plugins)
	}

	bad := []string{
		`{not json`,
		`{"plugins": []}`,
		`{"version": "1.0.0"}`,
		`{"version": "1.0.0", "plugins": [{"name": "x"}]}`,
	}
	for _, in := range bad {
		if _, err := ParsePluginLoaderManifest([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestManifestFilenames(t *testing.T) {
	core := &AssetRef{Filename: "dataprism-core.min.js"}
	m := &AssetManifest{
		Timestamp: time.Now(),
		Assets: AssetCategories{
			Core:            core,
			Orchestration:   core,
			PluginFramework: &AssetRef{Filename: "plugin-framework.min.js"},
			Wasm:            []WasmRef{{AssetRef: AssetRef{Filename: "engine.wasm"}}},
		},
	}
	got := m.Filenames()
	want := []string{"dataprism-core.min.js", "engine.wasm", "plugin-framework.min.js"}
	if len(got) != len(want) {
		t.Fatalf("Filenames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Filenames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

package report

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/srnarasim/dataprism-tooling/model"
)

func sampleRun(id string, ts time.Time) *Run {
	return &Run{
		DeploymentID: id,
		Timestamp:    ts,
		Target:       "github-pages",
		Environment:  "production",
		Version:      "1.2.0",
		URL:          "https://srnarasim.github.io/dataprism-cdn",
		Success:      true,
		BuildHash:    "1a2b3c4d",
		AssetCount:   4,
		TotalSize:    2048,
	}
}

func TestWriteAndLatest(t *testing.T) {
	dir := t.TempDir()

	older := sampleRun("deploy_1712000000000_aaaaaa", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	newer := sampleRun("deploy_1712000100000_bbbbbb", time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC))

	if _, err := older.Write(dir); err != nil {
		t.Fatal(err)
	}
	path, err := newer.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(path, "dataprism-cdn-report-20250302-100000.json") {
		t.Errorf("path = %q", path)
	}

	got, gotPath, err := Latest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != path {
		t.Errorf("Latest path = %q, want %q", gotPath, path)
	}
	if got.DeploymentID != newer.DeploymentID {
		t.Errorf("DeploymentID = %q, want %q", got.DeploymentID, newer.DeploymentID)
	}
	if got.BuildHash != "1a2b3c4d" || got.AssetCount != 4 {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestWriteCreatesDir(t *testing.T) {
	dir := t.TempDir() + "/nested/reports"
	r := sampleRun("deploy_1712000000000_cccccc", time.Now().UTC())
	path, err := r.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("report is not valid JSON")
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("report missing trailing newline")
	}
}

func TestLatestEmptyDir(t *testing.T) {
	if _, _, err := Latest(t.TempDir()); err == nil {
		t.Error("expected an error for a dir with no reports")
	}
}

func TestNewAssemblesPieces(t *testing.T) {
	dep := &model.DeploymentResult{
		DeploymentID: "deploy_1712000000000_dddddd",
		Success:      true,
		URL:          "https://example.github.io/site",
		Metrics:      &model.DeploymentMetrics{TotalFiles: 3, TotalSize: 99},
		Logs:         []string{"pushed"},
	}
	m := &model.AssetManifest{
		Version:   "2.0.0",
		BuildHash: "feedface",
		Integrity: map[string]string{"a.js": "sha384-x", "b.wasm": "sha384-y"},
	}
	m.Metadata.TotalBundleSize = 99
	v := &model.ValidationResult{Success: true, Passed: 11}

	r := New(dep, m, v)
	if r.DeploymentID != dep.DeploymentID || !r.Success || r.URL != dep.URL {
		t.Errorf("deployment fields: %+v", r)
	}
	if r.Version != "2.0.0" || r.BuildHash != "feedface" || r.AssetCount != 2 || r.TotalSize != 99 {
		t.Errorf("manifest fields: %+v", r)
	}
	if r.Validation == nil || r.Validation.Passed != 11 {
		t.Errorf("validation fields: %+v", r.Validation)
	}
	if r.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	// All-nil inputs still produce a writable run.
	empty := New(nil, nil, nil)
	if _, err := empty.Write(t.TempDir()); err != nil {
		t.Fatal(err)
	}
}

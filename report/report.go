// Package report persists the outcome of a deployment run as a JSON
// document, one file per run, so CI can archive what happened and a
// later audit can reconstruct it.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srnarasim/dataprism-tooling/model"
)

const filePrefix = "dataprism-cdn-report-"

// Run is the written document: enough to answer "what went out, where,
// and did it check out" without the terminal transcript.
type Run struct {
	DeploymentID string    `json:"deploymentId"`
	Timestamp    time.Time `json:"timestamp"`
	Target       string    `json:"target"`
	Environment  string    `json:"environment"`
	Version      string    `json:"version"`
	URL          string    `json:"url,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`

	BuildHash  string                   `json:"buildHash,omitempty"`
	AssetCount int                      `json:"assetCount"`
	TotalSize  int64                    `json:"totalSize"`
	Metrics    *model.DeploymentMetrics `json:"metrics,omitempty"`

	Validation *model.ValidationResult `json:"validation,omitempty"`
	Logs       []string                `json:"logs,omitempty"`
}

// New assembles a Run from the pieces a deployment produced. Any of
// deployment, manifest or validation may be nil.
func New(deployment *model.DeploymentResult, m *model.AssetManifest, validation *model.ValidationResult) *Run {
	r := &Run{Timestamp: time.Now().UTC()}
	if deployment != nil {
		r.DeploymentID = deployment.DeploymentID
		r.Success = deployment.Success
		r.URL = deployment.URL
		r.Error = deployment.Error
		r.Metrics = deployment.Metrics
		r.Logs = deployment.Logs
	}
	if m != nil {
		r.BuildHash = m.BuildHash
		r.Version = m.Version
		r.AssetCount = len(m.Integrity)
		r.TotalSize = m.Metadata.TotalBundleSize
	}
	r.Validation = validation
	return r
}

// Write stores the run under dir, creating it if needed, and returns
// the path written. Filenames embed a sortable UTC timestamp.
func (r *Run) Write(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	name := fmt.Sprintf("%s%s.json", filePrefix, r.Timestamp.UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	logrus.WithField("path", path).Debug("report written")
	return path, nil
}

// Latest returns the most recent report in dir, or an error when none
// exist. Timestamped names make lexical order chronological.
func Latest(dir string) (*Run, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("reading report dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, "", fmt.Errorf("no reports in %s", dir)
	}
	sort.Strings(names)

	path := filepath.Join(dir, names[len(names)-1])
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return &r, path, nil
}

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DryRunID is the deployment ID reported when nothing was published.
const DryRunID = "dry-run"

// NewDeploymentID mints a unique deployment identifier of the form
// deploy_<epoch-millis>_<6 char suffix>. The timestamp makes IDs sort
// chronologically; the suffix disambiguates deployments within the
// same millisecond.
func NewDeploymentID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("deploy_%d_%s", time.Now().UnixMilli(), suffix)
}

// IsDeploymentID reports whether s looks like an ID minted by
// NewDeploymentID. Used when parsing IDs back out of commit subjects.
func IsDeploymentID(s string) bool {
	if !strings.HasPrefix(s, "deploy_") {
		return false
	}
	parts := strings.Split(s, "_")
	if len(parts) != 3 || len(parts[2]) != 6 {
		return false
	}
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(parts[1]) > 0
}

// DeploymentMetrics summarizes one deployment attempt.
type DeploymentMetrics struct {
	BuildTimeMs      int64   `json:"buildTimeMs"`
	DeployTimeMs     int64   `json:"deployTimeMs"`
	TotalFiles       int     `json:"totalFiles"`
	TotalSize        int64   `json:"totalSize"`
	CompressionRatio float64 `json:"compressionRatio"`
}

// DeploymentResult is the outcome of a deployment attempt. Logs are
// appended in the order steps executed and are never reordered, so a
// failed run reads as a truthful transcript.
type DeploymentResult struct {
	Success      bool               `json:"success"`
	DeploymentID string             `json:"deploymentId"`
	URL          string             `json:"url,omitempty"`
	Logs         []string           `json:"logs"`
	Metrics      *DeploymentMetrics `json:"metrics,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Log appends a timestamped line to the result transcript.
func (r *DeploymentResult) Log(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	r.Logs = append(r.Logs, line)
}

// DeploymentRecord is one historical deployment as reconstructed from
// the provider's own history (for GitHub Pages, the branch log).
type DeploymentRecord struct {
	ID        string    `json:"id"`
	CommitSHA string    `json:"commitSha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Current   bool      `json:"current"`
}

// ProviderStatus is a point-in-time snapshot of the deployment target.
type ProviderStatus struct {
	Target    string `json:"target"`
	Repo      string `json:"repo,omitempty"`
	Branch    string `json:"branch,omitempty"`
	CommitSHA string `json:"commitSha,omitempty"`
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
}

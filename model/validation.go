package model

// CheckStatus classifies a single validation check outcome.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

// ValidationCheck is one named probe against a live deployment.
type ValidationCheck struct {
	Name    string         `json:"name"`
	Status  CheckStatus    `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// PerformanceMetrics captures timings observed while validating.
// WasmLoadTimeMs is -1 when no wasm asset could be measured; consumers
// must treat -1 as "unmeasured", not as a zero-duration load.
type PerformanceMetrics struct {
	LoadTimeMs        int64            `json:"loadTimeMs"`
	WasmLoadTimeMs    int64            `json:"wasmLoadTimeMs"`
	PluginLoadTimesMs map[string]int64 `json:"pluginLoadTimesMs,omitempty"`
	TotalSize         int64            `json:"totalSize"`
	CompressionRatio  float64          `json:"compressionRatio"`
}

// SecurityCheck is one header- or exposure-level finding.
type SecurityCheck struct {
	Name           string      `json:"name"`
	Status         CheckStatus `json:"status"`
	Description    string      `json:"description"`
	Recommendation string      `json:"recommendation,omitempty"`
}

// ValidationResult aggregates every check run against a deployment.
// Success is computed by Finalize and depends on the policy: normally
// warnings are tolerated, in strict mode any warning fails the run.
type ValidationResult struct {
	Success     bool                `json:"success"`
	Checks      []ValidationCheck   `json:"checks"`
	Performance *PerformanceMetrics `json:"performance,omitempty"`
	Security    []SecurityCheck     `json:"security,omitempty"`
	Passed      int                 `json:"passed"`
	Warnings    int                 `json:"warnings"`
	Failed      int                 `json:"failed"`
}

// Add records a check and bumps the matching counter.
func (r *ValidationResult) Add(c ValidationCheck) {
	r.Checks = append(r.Checks, c)
	switch c.Status {
	case CheckFailed:
		r.Failed++
	case CheckWarning:
		r.Warnings++
	default:
		r.Passed++
	}
}

// Finalize computes Success under the given policy.
func (r *ValidationResult) Finalize(strict bool) {
	if strict {
		r.Success = r.Failed == 0 && r.Warnings == 0
		return
	}
	r.Success = r.Failed == 0
}

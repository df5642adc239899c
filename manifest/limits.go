package manifest

import (
	"fmt"

	"github.com/srnarasim/dataprism-tooling/model"
)

// Category budgets. Exceeding one is advisory: the deploy proceeds, the
// operator gets a warning. CDN economics, not correctness.
const (
	limitCore            = 2 << 20   // 2 MB
	limitPluginFramework = 500 << 10 // 500 KB
	limitPlugin          = 500 << 10 // 500 KB each
	limitWasm            = 3 << 19   // 1.5 MB each
	limitTotal           = 5 << 20   // 5 MB
)

// SizeWarning reports one asset (or the whole bundle) over budget.
type SizeWarning struct {
	Category string `json:"category"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
	Limit    int64  `json:"limit"`
}

func (w SizeWarning) String() string {
	if w.Filename == "" {
		return fmt.Sprintf("%s size %d exceeds limit %d", w.Category, w.Size, w.Limit)
	}
	return fmt.Sprintf("%s %s size %d exceeds limit %d", w.Category, w.Filename, w.Size, w.Limit)
}

// CheckSizeLimits compares the manifest catalog against the budgets
// and returns every violation. Never fails a deploy on its own.
func CheckSizeLimits(m *model.AssetManifest) []SizeWarning {
	var warnings []SizeWarning
	over := func(category, filename string, size, limit int64) {
		if size > limit {
			warnings = append(warnings, SizeWarning{
				Category: category,
				Filename: filename,
				Size:     size,
				Limit:    limit,
			})
		}
	}

	if m.Assets.Core != nil {
		over("core", m.Assets.Core.Filename, m.Assets.Core.Size, limitCore)
	}
	if m.Assets.PluginFramework != nil {
		over("plugin-framework", m.Assets.PluginFramework.Filename, m.Assets.PluginFramework.Size, limitPluginFramework)
	}
	for _, p := range m.Assets.Plugins {
		over("plugin", p.Filename, p.Size, limitPlugin)
	}
	for _, w := range m.Assets.Wasm {
		over("wasm", w.Filename, w.Size, limitWasm)
	}
	over("total", "", m.Metadata.TotalBundleSize, limitTotal)
	return warnings
}

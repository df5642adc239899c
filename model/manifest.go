package model

import (
	"sort"
	"time"
)

// AssetRef is one named entry in the manifest's asset catalog.
// CompressedSize is an estimate, not a measurement; the CDN applies
// compression at the edge and we only predict the transfer cost.
type AssetRef struct {
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	Hash           string `json:"hash"`
	CompressedSize int64  `json:"compressedSize"`
}

// WasmRef describes a WebAssembly binary and the loading hints the
// runtime needs before instantiating it.
type WasmRef struct {
	AssetRef
	StreamingCompilation bool  `json:"streamingCompilation"`
	MemoryRequirement    int64 `json:"memoryRequirement"`
	CrossOriginIsolation bool  `json:"crossOriginIsolation"`
}

// PluginRef describes a distributable plugin bundle.
type PluginRef struct {
	AssetRef
	ID           string   `json:"id"`
	Category     string   `json:"category"`
	Dependencies []string `json:"dependencies"`
	Exports      []string `json:"exports"`
}

// AssetCategories splits the bundle into the roles the loader cares
// about. Core, Orchestration and PluginFramework are resolved by
// filename convention and fall back to the first asset in sorted order
// when nothing matches, so a manifest is never missing its entry points.
type AssetCategories struct {
	Core            *AssetRef   `json:"core,omitempty"`
	Orchestration   *AssetRef   `json:"orchestration,omitempty"`
	PluginFramework *AssetRef   `json:"pluginFramework,omitempty"`
	Plugins         []PluginRef `json:"plugins"`
	Wasm            []WasmRef   `json:"wasm"`
}

// BuildMetadata carries provenance for a manifest.
type BuildMetadata struct {
	GitCommit         string   `json:"gitCommit"`
	GitBranch         string   `json:"gitBranch"`
	RuntimeVersion    string   `json:"runtimeVersion"`
	OptimizationFlags []string `json:"optimizationFlags,omitempty"`
	TotalBundleSize   int64    `json:"totalBundleSize"`
	CompressionRatio  float64  `json:"compressionRatio"`
}

// CompatibilityMatrix declares what the published bundle requires from
// the browser. Served alongside the assets so loaders can bail early.
type CompatibilityMatrix struct {
	Browsers map[string]string `json:"browsers"`
	Features []string          `json:"features"`
}

// AssetManifest is the machine-readable description of one published
// bundle. It is serialized as manifest.json at the deployment root and
// is the contract between this pipeline and the runtime loader.
type AssetManifest struct {
	Version       string              `json:"version"`
	Timestamp     time.Time           `json:"timestamp"`
	BuildHash     string              `json:"buildHash"`
	Assets        AssetCategories     `json:"assets"`
	Integrity     map[string]string   `json:"integrity"`
	Metadata      BuildMetadata       `json:"metadata"`
	Compatibility CompatibilityMatrix `json:"compatibility"`
}

// Filenames returns every filename referenced by the asset catalog,
// deduplicated and sorted.
func (m *AssetManifest) Filenames() []string {
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" {
			seen[name] = true
		}
	}
	if m.Assets.Core != nil {
		add(m.Assets.Core.Filename)
	}
	if m.Assets.Orchestration != nil {
		add(m.Assets.Orchestration.Filename)
	}
	if m.Assets.PluginFramework != nil {
		add(m.Assets.PluginFramework.Filename)
	}
	for _, p := range m.Assets.Plugins {
		add(p.Filename)
	}
	for _, w := range m.Assets.Wasm {
		add(w.Filename)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WasmFiles returns the wasm entries in catalog order.
func (m *AssetManifest) WasmFiles() []WasmRef {
	return m.Assets.Wasm
}

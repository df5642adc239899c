// Package manifest turns a set of scanned assets into the manifest.json
// contract consumed by the runtime loader: categorized entry points,
// subresource integrity strings, wasm loading hints and a build hash
// that is stable for identical content.
package manifest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
)

// Builder assembles manifests. Zero value is unusable; construct with
// New so estimates and defaults are populated.
type Builder struct {
	Version          string
	BaseURL          string
	WasmOptimization bool
	Optimizations    []string
	Estimates        config.Estimates
	Context          BuildContext

	// Now is swappable so builds can be pinned to a timestamp.
	Now func() time.Time
}

// New wires a builder from the effective config.
func New(cfg *config.Config) *Builder {
	return &Builder{
		Version:          cfg.Version,
		BaseURL:          cfg.PagesURL(),
		WasmOptimization: cfg.WasmOptimization,
		Optimizations:    cfg.OptimizationFlags(),
		Estimates:        cfg.Estimates,
		Now:              time.Now,
	}
}

// Build produces the manifest for the given filename -> content map.
// The same input map always yields the same catalog, integrity map and
// build hash regardless of iteration order; only the timestamp varies,
// and that comes from b.Now.
func (b *Builder) Build(files map[string][]byte) (*model.AssetManifest, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	est := b.Estimates
	def := config.Default().Estimates
	if est.CompressionRatio <= 0 {
		est.CompressionRatio = def.CompressionRatio
	}
	if est.WasmMemoryFactor <= 0 {
		est.WasmMemoryFactor = def.WasmMemoryFactor
	}
	if est.WasmMemoryFloor <= 0 {
		est.WasmMemoryFloor = def.WasmMemoryFloor
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make(map[string]model.AssetRef, len(names))
	integrity := make(map[string]string, len(names))
	var totalSize int64
	for _, name := range names {
		content := files[name]
		sum := sha512.Sum384(content)
		size := int64(len(content))
		refs[name] = model.AssetRef{
			Filename:       name,
			Size:           size,
			Hash:           hex.EncodeToString(sum[:]),
			CompressedSize: int64(float64(size) * est.CompressionRatio),
		}
		integrity[name] = "sha384-" + base64.StdEncoding.EncodeToString(sum[:])
		totalSize += size
	}

	m := &model.AssetManifest{
		Version:   b.Version,
		Timestamp: now().UTC(),
		BuildHash: buildHash(names, refs),
		Assets:    b.categorize(names, refs, est),
		Integrity: integrity,
		Metadata: model.BuildMetadata{
			GitCommit:         b.Context.Commit,
			GitBranch:         b.Context.Branch,
			RuntimeVersion:    runtime.Version(),
			OptimizationFlags: b.Optimizations,
			TotalBundleSize:   totalSize,
			CompressionRatio:  est.CompressionRatio,
		},
		Compatibility: compatibility(),
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	return m, nil
}

// buildHash fingerprints the bundle content: SHA-256 over the per-file
// SHA-384 hex digests concatenated in sorted filename order, truncated
// to 8 hex chars. Good enough to tell two builds apart at a glance.
func buildHash(names []string, refs map[string]model.AssetRef) string {
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(refs[name].Hash))
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// categorize resolves the named entry points by filename convention.
// A bundle that lacks a conventional name still gets an entry: the
// first asset in sorted order stands in, which keeps old loaders
// working against oddly named bundles.
func (b *Builder) categorize(names []string, refs map[string]model.AssetRef, est config.Estimates) model.AssetCategories {
	cats := model.AssetCategories{
		Plugins: []model.PluginRef{},
		Wasm:    []model.WasmRef{},
	}
	if len(names) == 0 {
		return cats
	}

	find := func(substr string) *model.AssetRef {
		for _, name := range names {
			if strings.Contains(baseName(name), substr) {
				ref := refs[name]
				return &ref
			}
		}
		first := refs[names[0]]
		return &first
	}
	cats.Core = find("core")
	cats.Orchestration = find("orchestration")
	cats.PluginFramework = find("plugin-framework")

	for _, name := range names {
		base := baseName(name)
		if strings.Contains(base, "plugin") && !strings.Contains(base, "plugin-framework") {
			ref := refs[name]
			id, category := pluginMeta(base)
			cats.Plugins = append(cats.Plugins, model.PluginRef{
				AssetRef:     ref,
				ID:           id,
				Category:     category,
				Dependencies: []string{},
				Exports:      []string{},
			})
		}
		if model.IsWasm(name) {
			ref := refs[name]
			mem := ref.Size * est.WasmMemoryFactor
			if mem < est.WasmMemoryFloor {
				mem = est.WasmMemoryFloor
			}
			cats.Wasm = append(cats.Wasm, model.WasmRef{
				AssetRef:             ref,
				StreamingCompilation: b.WasmOptimization,
				MemoryRequirement:    mem,
				CrossOriginIsolation: true,
			})
		}
	}
	return cats
}

func baseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// pluginMeta derives an ID and category from a plugin filename. The
// extraction is best effort: strip extensions and the plugin affix,
// then bucket by keyword.
func pluginMeta(base string) (id, category string) {
	id = base
	for _, suffix := range []string{".js", ".mjs", ".min", ".esm"} {
		id = strings.TrimSuffix(id, suffix)
	}
	id = strings.TrimSuffix(id, "-plugin")
	id = strings.TrimPrefix(id, "plugin-")

	switch {
	case containsAny(id, "chart", "graph", "visual", "plot"):
		category = "visualization"
	case containsAny(id, "csv", "parquet", "connector", "loader", "import"):
		category = "integration"
	case containsAny(id, "export", "download"):
		category = "export"
	case containsAny(id, "ml", "analytics", "cluster", "transform"):
		category = "processing"
	default:
		category = "utility"
	}
	return id, category
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// compatibility is the browser support floor for streaming wasm and
// ES2020 modules, published so loaders can bail out early.
func compatibility() model.CompatibilityMatrix {
	return model.CompatibilityMatrix{
		Browsers: map[string]string{
			"chrome":  ">=90",
			"firefox": ">=89",
			"safari":  ">=15",
			"edge":    ">=90",
		},
		Features: []string{
			"webassembly",
			"streaming-compilation",
			"es2020-modules",
			"web-workers",
		},
	}
}

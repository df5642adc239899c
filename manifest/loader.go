package manifest

import (
	"sort"

	"github.com/srnarasim/dataprism-tooling/model"
)

// LoaderManifest derives the plugins/manifest.json served to the
// browser-side plugin loader from an already-built asset manifest.
func (b *Builder) LoaderManifest(m *model.AssetManifest) *model.PluginLoaderManifest {
	plugins := make([]model.LoaderPlugin, 0, len(m.Assets.Plugins))
	seen := map[string]bool{}
	for _, p := range m.Assets.Plugins {
		plugins = append(plugins, model.LoaderPlugin{
			ID:           p.ID,
			Name:         p.ID,
			Entry:        p.Filename,
			Category:     p.Category,
			Integrity:    m.Integrity[p.Filename],
			Dependencies: p.Dependencies,
		})
		seen[p.Category] = true
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &model.PluginLoaderManifest{
		Version:       m.Version,
		Timestamp:     m.Timestamp,
		BaseURL:       b.BaseURL,
		Plugins:       plugins,
		Categories:    categories,
		Compatibility: m.Compatibility,
	}
}

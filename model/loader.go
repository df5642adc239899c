package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LoaderPlugin is one plugin entry in the loader manifest.
type LoaderPlugin struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Entry        string   `json:"entry"`
	Category     string   `json:"category,omitempty"`
	Integrity    string   `json:"integrity,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// PluginLoaderManifest is served as plugins/manifest.json and tells the
// browser-side plugin loader what is available at this deployment.
type PluginLoaderManifest struct {
	Version       string              `json:"version"`
	Timestamp     time.Time           `json:"timestamp"`
	BaseURL       string              `json:"baseUrl"`
	Plugins       []LoaderPlugin      `json:"plugins"`
	Categories    []string            `json:"categories"`
	Compatibility CompatibilityMatrix `json:"compatibility"`
}

// ParsePluginLoaderManifest decodes and sanity-checks a loader
// manifest. A manifest that parses but declares no usable shape (no
// version, nil plugin list) is rejected: the loader would dereference
// it blindly.
func ParsePluginLoaderManifest(data []byte) (*PluginLoaderManifest, error) {
	var m PluginLoaderManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidManifest)
	}
	if m.Plugins == nil {
		return nil, fmt.Errorf("%w: missing plugins list", ErrInvalidManifest)
	}
	for i, p := range m.Plugins {
		if p.ID == "" || p.Name == "" || p.Entry == "" {
			return nil, fmt.Errorf("%w: plugin %d missing id, name or entry", ErrInvalidManifest, i)
		}
	}
	return &m, nil
}

package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/srnarasim/dataprism-tooling/model"
)

// ManifestFile is the filename published at the deployment root.
const ManifestFile = "manifest.json"

// IntegrityFileName is the standalone integrity artifact, published so
// external tooling can verify assets without parsing the full manifest.
const IntegrityFileName = "integrity.json"

// LoaderManifestFile is the plugin loader's entry manifest.
const LoaderManifestFile = "plugins/manifest.json"

// Encode serializes any manifest artifact as indented JSON with a
// trailing newline, the form the published files use.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// integrityArtifact is the integrity.json shape.
type integrityArtifact struct {
	Algorithm string            `json:"algorithm"`
	BuildHash string            `json:"buildHash"`
	Generated time.Time         `json:"generated"`
	Files     map[string]string `json:"files"`
}

// IntegrityFile renders the standalone integrity artifact for m.
func IntegrityFile(m *model.AssetManifest) ([]byte, error) {
	return Encode(integrityArtifact{
		Algorithm: "sha384",
		BuildHash: m.BuildHash,
		Generated: m.Timestamp,
		Files:     m.Integrity,
	})
}

// Artifacts renders every generated file for a bundle: the asset
// manifest, the integrity artifact, the loader manifest and the
// target's side files. Keys are paths relative to the deployment root.
func (b *Builder) Artifacts(m *model.AssetManifest, target, domain, environment string) (map[string][]byte, error) {
	out := map[string][]byte{}

	data, err := Encode(m)
	if err != nil {
		return nil, err
	}
	out[ManifestFile] = data

	if data, err = IntegrityFile(m); err != nil {
		return nil, err
	}
	out[IntegrityFileName] = data

	if data, err = Encode(b.LoaderManifest(m)); err != nil {
		return nil, err
	}
	out[LoaderManifestFile] = data

	for name, content := range SideFiles(target, domain) {
		out[name] = content
	}
	if robots := RobotsFile(environment); robots != nil {
		out["robots.txt"] = robots
	}
	return out, nil
}

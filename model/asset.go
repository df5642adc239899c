package model

import (
	"path"
	"strings"
	"time"
)

// AssetFile is a single file discovered in a build output directory.
// Path is always relative to the scanned root and uses forward slashes,
// so the same bundle hashes identically on every platform.
type AssetFile struct {
	Path     string `json:"path"`
	Content  []byte `json:"-"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	// Hash is the lowercase hex SHA-384 digest of Content.
	Hash string `json:"hash"`
}

// BundleMetadata records where and when a bundle was assembled.
type BundleMetadata struct {
	DeploymentID string    `json:"deploymentId"`
	Timestamp    time.Time `json:"timestamp"`
	Target       string    `json:"target"`
	Environment  string    `json:"environment"`
}

// AssetBundle is the complete set of files staged for one deployment,
// plus the manifest generated for them. TotalSize is always the sum of
// the file sizes; Bundle construction keeps the two in lockstep.
type AssetBundle struct {
	Files     []AssetFile    `json:"files"`
	Manifest  *AssetManifest `json:"manifest,omitempty"`
	TotalSize int64          `json:"totalSize"`
	Metadata  BundleMetadata `json:"metadata"`
}

// NewBundle builds a bundle from files and computes TotalSize.
func NewBundle(files []AssetFile) *AssetBundle {
	b := &AssetBundle{Files: files}
	for _, f := range files {
		b.TotalSize += f.Size
	}
	return b
}

// File returns the asset at the given relative path, or nil.
func (b *AssetBundle) File(p string) *AssetFile {
	for i := range b.Files {
		if b.Files[i].Path == p {
			return &b.Files[i]
		}
	}
	return nil
}

// Contents returns path -> content for every file in the bundle.
func (b *AssetBundle) Contents() map[string][]byte {
	m := make(map[string][]byte, len(b.Files))
	for _, f := range b.Files {
		m[f.Path] = f.Content
	}
	return m
}

// mimeTypes is the fixed extension table used for both manifest
// generation and local serving. Unknown extensions fall back to
// application/octet-stream. application/wasm in particular must be
// exact or browsers refuse streaming compilation.
var mimeTypes = map[string]string{
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".wasm":  "application/wasm",
	".json":  "application/json",
	".map":   "application/json",
	".css":   "text/css",
	".html":  "text/html",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
}

// MimeTypeFor maps a filename to its content type by extension.
func MimeTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// IsWasm reports whether the filename is a WebAssembly binary.
func IsWasm(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".wasm")
}

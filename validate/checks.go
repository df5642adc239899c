package validate

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/srnarasim/dataprism-tooling/model"
)

// httpOK treats redirects as reachable, matching what a browser does.
func httpOK(code int) bool { return code >= 200 && code < 400 }

func (d *deployment) checkConnectivity(ctx context.Context) model.ValidationCheck {
	resp, _, dur, err := d.get(ctx, "/", nil)
	if err != nil {
		return failed(fmt.Sprintf("deployment unreachable: %v", err))
	}
	details := map[string]any{"statusCode": resp.StatusCode, "durationMs": dur.Milliseconds()}
	if !httpOK(resp.StatusCode) {
		return withDetails(failed(fmt.Sprintf("deployment returned HTTP %d", resp.StatusCode)), details)
	}
	return withDetails(passed(fmt.Sprintf("reachable in %dms", dur.Milliseconds())), details)
}

// checkManifest fetches and parses manifest.json. On success it also
// stores the manifest as shared state for the dependent checks; it is
// the only writer and runs before the fan-out.
func (d *deployment) checkManifest(ctx context.Context) model.ValidationCheck {
	resp, body, _, err := d.get(ctx, "manifest.json", nil)
	if err != nil {
		return failed(fmt.Sprintf("manifest.json unreachable: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return failed(fmt.Sprintf("manifest.json returned HTTP %d", resp.StatusCode))
	}

	var m model.AssetManifest
	if err := json.Unmarshal(body, &m); err != nil {
		return failed(fmt.Sprintf("manifest.json does not parse: %v", err))
	}
	switch {
	case m.Version == "":
		return failed("manifest.json is missing version")
	case m.BuildHash == "":
		return failed("manifest.json is missing buildHash")
	case m.Integrity == nil:
		return failed("manifest.json is missing the integrity map")
	}

	d.manifest = &m
	return withDetails(passed(fmt.Sprintf("version %s, build %s", m.Version, m.BuildHash)), map[string]any{
		"version":   m.Version,
		"buildHash": m.BuildHash,
		"assets":    len(m.Integrity),
	})
}

// checkAssetIntegrity re-downloads the entry-point assets and verifies
// them against the manifest's integrity strings. Mismatches degrade to
// warnings; the strict policy decides whether that sinks the run.
func (d *deployment) checkAssetIntegrity(ctx context.Context) model.ValidationCheck {
	m := d.manifest
	if m == nil {
		return skippedNoManifest()
	}

	var candidates []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			candidates = append(candidates, name)
		}
	}
	if m.Assets.Core != nil {
		add(m.Assets.Core.Filename)
	}
	if m.Assets.PluginFramework != nil {
		add(m.Assets.PluginFramework.Filename)
	}
	if len(m.Assets.Wasm) > 0 {
		add(m.Assets.Wasm[0].Filename)
	}
	if len(candidates) > d.v.MaxIntegrityProbes {
		candidates = candidates[:d.v.MaxIntegrityProbes]
	}
	if len(candidates) == 0 {
		return passed("no assets to verify")
	}

	var problems []string
	for _, name := range candidates {
		expected, ok := m.Integrity[name]
		if !ok {
			problems = append(problems, name+": no integrity entry")
			continue
		}
		resp, body, _, err := d.get(ctx, name, nil)
		if err != nil || resp.StatusCode != http.StatusOK {
			problems = append(problems, name+": not fetchable")
			continue
		}
		sum := sha512.Sum384(body)
		if got := "sha384-" + base64.StdEncoding.EncodeToString(sum[:]); got != expected {
			problems = append(problems, name+": hash mismatch")
		}
	}
	if len(problems) > 0 {
		return withDetails(warning(fmt.Sprintf("%d of %d assets failed verification", len(problems), len(candidates))),
			map[string]any{"problems": problems})
	}
	return passed(fmt.Sprintf("%d assets verified", len(candidates)))
}

// checkWasmMime verifies wasm binaries are served with the exact
// application/wasm content type; anything else breaks
// WebAssembly.instantiateStreaming in every browser.
func (d *deployment) checkWasmMime(ctx context.Context) model.ValidationCheck {
	m := d.manifest
	if m == nil {
		return skippedNoManifest()
	}
	wasm := m.Assets.Wasm
	if len(wasm) == 0 {
		return passed("no wasm assets")
	}
	if len(wasm) > 2 {
		wasm = wasm[:2]
	}

	for _, w := range wasm {
		resp, _, _, err := d.get(ctx, w.Filename, nil)
		if err != nil || resp.StatusCode != http.StatusOK {
			return failed(fmt.Sprintf("%s not fetchable", w.Filename))
		}
		mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil || mt != "application/wasm" {
			return withDetails(failed(fmt.Sprintf("%s served as %q, streaming compilation will fail",
				w.Filename, resp.Header.Get("Content-Type"))),
				map[string]any{"contentType": resp.Header.Get("Content-Type")})
		}
	}
	return passed(fmt.Sprintf("%d wasm assets served as application/wasm", len(wasm)))
}

// checkWasmStreaming looks for the cross-origin isolation headers that
// wasm threads and SharedArrayBuffer need. Plain static hosts rarely
// set them, so missing headers are a warning, not a failure.
func (d *deployment) checkWasmStreaming(ctx context.Context) model.ValidationCheck {
	m := d.manifest
	if m == nil {
		return skippedNoManifest()
	}
	if len(m.Assets.Wasm) == 0 {
		return passed("no wasm assets")
	}

	var missing []string
	if resp, _, _, err := d.get(ctx, "/", nil); err == nil {
		if !strings.EqualFold(resp.Header.Get("Cross-Origin-Opener-Policy"), "same-origin") {
			missing = append(missing, "Cross-Origin-Opener-Policy")
		}
		if !strings.EqualFold(resp.Header.Get("Cross-Origin-Embedder-Policy"), "require-corp") {
			missing = append(missing, "Cross-Origin-Embedder-Policy")
		}
	}
	if resp, _, _, err := d.get(ctx, m.Assets.Wasm[0].Filename, nil); err == nil {
		if resp.Header.Get("Cross-Origin-Resource-Policy") == "" && resp.Header.Get("Access-Control-Allow-Origin") == "" {
			missing = append(missing, "Cross-Origin-Resource-Policy")
		}
	}

	if len(missing) > 0 {
		return withDetails(warning(fmt.Sprintf("cross-origin isolation incomplete, missing %s", strings.Join(missing, ", "))),
			map[string]any{"missing": missing})
	}
	return passed("cross-origin isolation headers present")
}

// checkPluginFramework verifies the plugin entry chain: the framework
// bundle itself and the loader manifest it reads.
func (d *deployment) checkPluginFramework(ctx context.Context) model.ValidationCheck {
	m := d.manifest
	if m == nil {
		return skippedNoManifest()
	}
	if m.Assets.PluginFramework == nil {
		return warning("manifest has no plugin framework entry")
	}

	resp, _, _, err := d.get(ctx, m.Assets.PluginFramework.Filename, nil)
	if err != nil || resp.StatusCode != http.StatusOK {
		return failed(fmt.Sprintf("plugin framework %s not fetchable", m.Assets.PluginFramework.Filename))
	}

	resp, body, _, err := d.get(ctx, "plugins/manifest.json", nil)
	if err != nil {
		return warning(fmt.Sprintf("plugins/manifest.json unreachable: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return warning("plugins/manifest.json not found, plugin discovery disabled")
	}
	lm, err := model.ParsePluginLoaderManifest(body)
	if err != nil {
		return failed(fmt.Sprintf("loader manifest rejected: %v", err))
	}
	return withDetails(passed(fmt.Sprintf("framework reachable, %d plugins listed", len(lm.Plugins))),
		map[string]any{"plugins": len(lm.Plugins)})
}

// checkCORS verifies cross-origin reads of the manifest work, since
// analytics embeds load the CDN from foreign origins.
func (d *deployment) checkCORS(ctx context.Context) model.ValidationCheck {
	header := http.Header{"Origin": []string{"https://app.example.com"}}
	resp, _, _, err := d.get(ctx, "manifest.json", header)
	if err != nil {
		return failed(fmt.Sprintf("manifest.json unreachable: %v", err))
	}
	acao := resp.Header.Get("Access-Control-Allow-Origin")
	if acao == "" {
		return warning("no Access-Control-Allow-Origin header, cross-origin loaders will be blocked")
	}
	return withDetails(passed("cross-origin reads allowed"), map[string]any{"allowOrigin": acao})
}

// checkCacheHeaders verifies hashed assets are cacheable. The CDN
// still works without caching, just expensively.
func (d *deployment) checkCacheHeaders(ctx context.Context) model.ValidationCheck {
	m := d.manifest
	if m == nil || m.Assets.Core == nil {
		return skippedNoManifest()
	}
	resp, _, _, err := d.get(ctx, m.Assets.Core.Filename, nil)
	if err != nil || resp.StatusCode != http.StatusOK {
		return warning(fmt.Sprintf("%s not fetchable", m.Assets.Core.Filename))
	}
	cc := resp.Header.Get("Cache-Control")
	if cc == "" {
		return warning("assets served without Cache-Control")
	}
	return withDetails(passed("assets are cacheable"), map[string]any{"cacheControl": cc})
}

package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/srnarasim/dataprism-tooling/model"
)

// checkPerformance measures real fetch timings: the root document,
// the first wasm binary and up to three plugin bundles. Slow is a
// warning; unmeasurable wasm is reported as -1, never as fast.
func (d *deployment) checkPerformance(ctx context.Context) model.ValidationCheck {
	metrics := &model.PerformanceMetrics{WasmLoadTimeMs: -1}
	defer func() {
		d.mu.Lock()
		d.performance = metrics
		d.mu.Unlock()
	}()

	resp, _, dur, err := d.get(ctx, "/", nil)
	if err != nil {
		metrics.LoadTimeMs = -1
		return failed(fmt.Sprintf("could not measure load time: %v", err))
	}
	metrics.LoadTimeMs = dur.Milliseconds()
	if !httpOK(resp.StatusCode) {
		return failed(fmt.Sprintf("deployment returned HTTP %d", resp.StatusCode))
	}

	m := d.manifest
	if m != nil {
		metrics.TotalSize = m.Metadata.TotalBundleSize
		metrics.CompressionRatio = m.Metadata.CompressionRatio

		if len(m.Assets.Wasm) > 0 {
			if resp, _, wdur, err := d.get(ctx, m.Assets.Wasm[0].Filename, nil); err == nil && resp.StatusCode == http.StatusOK {
				metrics.WasmLoadTimeMs = wdur.Milliseconds()
			}
		}

		plugins := m.Assets.Plugins
		if len(plugins) > 3 {
			plugins = plugins[:3]
		}
		for _, p := range plugins {
			if resp, _, pdur, err := d.get(ctx, p.Filename, nil); err == nil && resp.StatusCode == http.StatusOK {
				if metrics.PluginLoadTimesMs == nil {
					metrics.PluginLoadTimesMs = map[string]int64{}
				}
				metrics.PluginLoadTimesMs[p.ID] = pdur.Milliseconds()
			}
		}
	}

	over := []string{}
	if metrics.LoadTimeMs > d.v.LoadTimeLimit.Milliseconds() {
		over = append(over, fmt.Sprintf("load %dms (budget %dms)", metrics.LoadTimeMs, d.v.LoadTimeLimit.Milliseconds()))
	}
	if metrics.WasmLoadTimeMs > d.v.WasmLoadLimit.Milliseconds() {
		over = append(over, fmt.Sprintf("wasm %dms (budget %dms)", metrics.WasmLoadTimeMs, d.v.WasmLoadLimit.Milliseconds()))
	}
	if len(over) > 0 {
		return withDetails(warning("over budget: "+strings.Join(over, ", ")), map[string]any{"over": over})
	}
	return passed(fmt.Sprintf("load %dms, wasm %s", metrics.LoadTimeMs, wasmLabel(metrics.WasmLoadTimeMs)))
}

func wasmLabel(ms int64) string {
	if ms < 0 {
		return "unmeasured"
	}
	return fmt.Sprintf("%dms", ms)
}

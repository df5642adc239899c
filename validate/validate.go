// Package validate runs the post-deploy battery against a live CDN
// URL: reachability, manifest sanity, asset integrity, wasm serving
// requirements, header hygiene and load timings. Checks run
// concurrently and fail independently; one flaky probe never hides the
// results of the others.
package validate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/srnarasim/dataprism-tooling/model"
)

// checkOrder is the canonical report order. Aggregation is by name, so
// concurrent completion never shuffles the output.
var checkOrder = []string{
	"connectivity",
	"manifest",
	"asset-integrity",
	"wasm-mime",
	"wasm-streaming",
	"plugin-framework",
	"cors-headers",
	"cache-headers",
	"security-headers",
	"sensitive-files",
	"performance",
}

// Validator runs the battery. Zero value works; New sets the policy.
type Validator struct {
	// Client is the probe client. Defaults to a 10s-timeout client.
	Client *http.Client

	// Timeout bounds each individual check.
	Timeout time.Duration

	// Strict makes warnings fail the overall result.
	Strict bool

	// SkipPerformance drops the timing check, for air-gapped smoke
	// tests where latency numbers are noise.
	SkipPerformance bool

	// LoadTimeLimit and WasmLoadLimit are the timing budgets before
	// the performance check degrades to a warning.
	LoadTimeLimit time.Duration
	WasmLoadLimit time.Duration

	// MaxIntegrityProbes caps how many assets get re-downloaded and
	// re-hashed.
	MaxIntegrityProbes int
}

// New returns a validator with the given warning policy.
func New(strict bool) *Validator {
	return &Validator{Strict: strict}
}

func (v *Validator) defaults() {
	if v.Client == nil {
		v.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if v.Timeout <= 0 {
		v.Timeout = 15 * time.Second
	}
	if v.LoadTimeLimit <= 0 {
		v.LoadTimeLimit = 5 * time.Second
	}
	if v.WasmLoadLimit <= 0 {
		v.WasmLoadLimit = 2 * time.Second
	}
	if v.MaxIntegrityProbes <= 0 {
		v.MaxIntegrityProbes = 3
	}
}

// ValidateDeployment runs every check against the deployment at
// rawURL. The error return covers unusable input only; a broken
// deployment comes back as a result with failed checks.
func (v *Validator) ValidateDeployment(ctx context.Context, rawURL string) (*model.ValidationResult, error) {
	base, err := normalizeBaseURL(rawURL)
	if err != nil {
		return nil, err
	}
	v.defaults()

	d := &deployment{v: v, base: base}

	// The manifest gates half the battery, so its check runs first
	// and the rest fan out afterwards.
	byName := map[string]model.ValidationCheck{
		"manifest": v.runOne(ctx, "manifest", d.checkManifest),
	}

	checks := []struct {
		name string
		fn   func(context.Context) model.ValidationCheck
	}{
		{"connectivity", d.checkConnectivity},
		{"asset-integrity", d.checkAssetIntegrity},
		{"wasm-mime", d.checkWasmMime},
		{"wasm-streaming", d.checkWasmStreaming},
		{"plugin-framework", d.checkPluginFramework},
		{"cors-headers", d.checkCORS},
		{"cache-headers", d.checkCacheHeaders},
		{"security-headers", d.checkSecurityHeaders},
		{"sensitive-files", d.checkSensitiveFiles},
	}
	if !v.SkipPerformance {
		checks = append(checks, struct {
			name string
			fn   func(context.Context) model.ValidationCheck
		}{"performance", d.checkPerformance})
	}

	results := make(chan model.ValidationCheck, len(checks))
	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func(name string, fn func(context.Context) model.ValidationCheck) {
			defer wg.Done()
			results <- v.runOne(ctx, name, fn)
		}(c.name, c.fn)
	}
	wg.Wait()
	close(results)

	for c := range results {
		byName[c.name] = c
	}

	res := &model.ValidationResult{}
	for _, name := range checkOrder {
		if c, ok := byName[name]; ok {
			res.Add(c)
		}
	}

	d.mu.Lock()
	res.Performance = d.performance
	sort.Slice(d.security, func(i, j int) bool { return d.security[i].Name < d.security[j].Name })
	res.Security = d.security
	d.mu.Unlock()

	res.Finalize(v.Strict)
	return res, nil
}

// runOne executes a single check with its own deadline and panic
// isolation. A crashed check is a failed check, nothing more.
func (v *Validator) runOne(ctx context.Context, name string, fn func(context.Context) model.ValidationCheck) (check model.ValidationCheck) {
	cctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			check = model.ValidationCheck{
				Name:    name,
				Status:  model.CheckFailed,
				Message: fmt.Sprintf("check crashed: %v", r),
			}
		}
	}()
	check = fn(cctx)
	check.Name = name
	return check
}

func normalizeBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid deployment URL %q", model.ErrConfiguration, rawURL)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// deployment is the shared probe state for one validation run. The
// manifest is written once before the fan-out; security findings and
// performance metrics are written under mu by concurrent checks.
type deployment struct {
	v    *Validator
	base string

	manifest *model.AssetManifest

	mu          sync.Mutex
	security    []model.SecurityCheck
	performance *model.PerformanceMetrics
}

func (d *deployment) url(path string) string {
	return d.base + "/" + strings.TrimPrefix(path, "/")
}

const maxProbeBody = 32 << 20

// get fetches a path, returning the response (body already read and
// closed), its content, and how long the full read took.
func (d *deployment) get(ctx context.Context, path string, header http.Header) (*http.Response, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url(path), nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("User-Agent", "dataprism-cdn-pipeline")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	start := time.Now()
	resp, err := d.v.Client.Do(req)
	if err != nil {
		return nil, nil, time.Since(start), err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return resp, nil, time.Since(start), err
	}
	return resp, body, time.Since(start), nil
}

func passed(message string) model.ValidationCheck {
	return model.ValidationCheck{Status: model.CheckPassed, Message: message}
}

func warning(message string) model.ValidationCheck {
	return model.ValidationCheck{Status: model.CheckWarning, Message: message}
}

func failed(message string) model.ValidationCheck {
	return model.ValidationCheck{Status: model.CheckFailed, Message: message}
}

func withDetails(c model.ValidationCheck, details map[string]any) model.ValidationCheck {
	c.Details = details
	return c
}

// skippedNoManifest is the shared outcome for checks that cannot run
// without a parsed manifest.
func skippedNoManifest() model.ValidationCheck {
	return warning("skipped: manifest unavailable")
}

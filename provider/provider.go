// Package provider abstracts where a bundle gets published. GitHub
// Pages is the only working implementation; the other registered
// targets reject every call until someone builds them, which keeps the
// target namespace stable without pretending to deploy.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
)

// Payload is everything a provider needs to publish one deployment:
// the scanned bundle, the generated artifacts (manifest.json and
// friends, keyed by path relative to the deployment root) and the
// deployment ID minted by the orchestrator.
type Payload struct {
	ID        string
	Bundle    *model.AssetBundle
	Artifacts map[string][]byte
}

// Files merges bundle contents and artifacts into one path -> content
// map. Artifacts win on collision: a freshly generated manifest always
// replaces a stale one lying around in the build directory.
func (p *Payload) Files() map[string][]byte {
	out := p.Bundle.Contents()
	for name, content := range p.Artifacts {
		out[name] = content
	}
	return out
}

// Provider is the uniform deployment contract. Implementations are
// bound to one config at construction time.
type Provider interface {
	// Name returns the registered target name.
	Name() string

	// TestConnection verifies credentials and reachability without
	// changing anything remote.
	TestConnection(ctx context.Context) error

	// Deploy publishes the payload. The returned result carries the
	// transcript even when err is non-nil.
	Deploy(ctx context.Context, payload *Payload) (*model.DeploymentResult, error)

	// Validate runs the post-deploy battery against a published URL.
	Validate(ctx context.Context, url string) (*model.ValidationResult, error)

	// Rollback republishes the prior state identified by
	// deploymentID.
	Rollback(ctx context.Context, deploymentID string) (*model.DeploymentResult, error)

	// ListDeployments returns recent deployments, newest first.
	ListDeployments(ctx context.Context, limit int) ([]model.DeploymentRecord, error)

	// Status snapshots the remote target.
	Status(ctx context.Context) (*model.ProviderStatus, error)

	// Cleanup removes local leftovers from previous runs.
	Cleanup(ctx context.Context) error
}

// Factory builds a provider bound to cfg.
type Factory func(cfg *config.Config) (Provider, error)

// Registry maps target names onto factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with every known target registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register("github-pages", func(cfg *config.Config) (Provider, error) {
		return NewGitHubPages(cfg)
	})
	for _, name := range []string{"cloudflare-pages", "netlify", "vercel"} {
		target := name
		r.Register(target, func(cfg *config.Config) (Provider, error) {
			return newStub(target), nil
		})
	}
	return r
}

// Register adds or replaces a target factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Supported reports whether target is registered.
func (r *Registry) Supported(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[target]
	return ok
}

// Targets returns the registered target names, sorted.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get constructs the provider for target.
func (r *Registry) Get(target string, cfg *config.Config) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[target]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			model.ErrProviderUnsupported, target, strings.Join(r.Targets(), ", "))
	}
	return f(cfg)
}

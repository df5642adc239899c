package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/srnarasim/dataprism-tooling/model"
)

func TestRegistryTargets(t *testing.T) {
	r := NewRegistry()
	want := []string{"cloudflare-pages", "github-pages", "netlify", "vercel"}
	got := r.Targets()
	if len(got) != len(want) {
		t.Fatalf("Targets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Targets()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !r.Supported("github-pages") || r.Supported("s3") {
		t.Error("Supported() misreports the registry")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("s3", testConfig())
	if !errors.Is(err, model.ErrProviderUnsupported) {
		t.Errorf("err = %v, want ErrProviderUnsupported", err)
	}
}

func TestRegistryGetGitHubPages(t *testing.T) {
	r := NewRegistry()
	p, err := r.Get("github-pages", testConfig())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name() != "github-pages" {
		t.Errorf("Name() = %q", p.Name())
	}

	// Construction enforces target preconditions.
	cfg := testConfig()
	cfg.Repository = ""
	if _, err := r.Get("github-pages", cfg); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestStubsFailFast(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	for _, target := range []string{"cloudflare-pages", "netlify", "vercel"} {
		p, err := r.Get(target, testConfig())
		if err != nil {
			t.Fatalf("Get(%s): %v", target, err)
		}
		if err := p.TestConnection(ctx); !errors.Is(err, model.ErrNotImplemented) {
			t.Errorf("%s TestConnection err = %v, want ErrNotImplemented", target, err)
		}
		if _, err := p.Deploy(ctx, testPayload()); !errors.Is(err, model.ErrNotImplemented) {
			t.Errorf("%s Deploy err = %v, want ErrNotImplemented", target, err)
		}
		if _, err := p.Rollback(ctx, "deploy_1_abcdef"); !errors.Is(err, model.ErrNotImplemented) {
			t.Errorf("%s Rollback err = %v, want ErrNotImplemented", target, err)
		}
		if _, err := p.Validate(ctx, "https://example.com"); !errors.Is(err, model.ErrNotImplemented) {
			t.Errorf("%s Validate err = %v, want ErrNotImplemented", target, err)
		}
		if err := p.Cleanup(ctx); err != nil {
			t.Errorf("%s Cleanup must be a no-op: %v", target, err)
		}
	}
}

func TestPayloadFilesArtifactsWin(t *testing.T) {
	payload := testPayload()
	payload.Bundle.Files = append(payload.Bundle.Files, model.AssetFile{
		Path: "manifest.json", Content: []byte("stale"), Size: 5,
	})
	files := payload.Files()
	if string(files["manifest.json"]) != "{}\n" {
		t.Errorf("generated artifact must replace a stale bundle copy, got %q", files["manifest.json"])
	}
}

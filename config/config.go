// Package config loads deployment settings from, in increasing
// precedence: built-in defaults, an optional dataprism-cdn.yaml file,
// environment variables (a local .env is honored), and command-line
// flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/srnarasim/dataprism-tooling/model"
)

// DefaultFile is the config file probed when --config is not given.
const DefaultFile = "dataprism-cdn.yaml"

// BuildConfig controls the optional pre-deploy build step.
type BuildConfig struct {
	Command string `yaml:"command" env:"CDN_BUILD_COMMAND"`
	Dir     string `yaml:"dir" env:"CDN_BUILD_WORKDIR"`
}

// ScanConfig filters which files enter the bundle. Patterns are
// doublestar globs matched against slash-separated relative paths.
type ScanConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Estimates tunes the derived numbers written into manifests. The
// compression ratio is an estimate of edge compression, not a
// measurement; the wasm factors size the memory hint handed to the
// runtime loader.
type Estimates struct {
	CompressionRatio float64 `yaml:"compressionRatio"`
	WasmMemoryFactor int64   `yaml:"wasmMemoryFactor"`
	WasmMemoryFloor  int64   `yaml:"wasmMemoryFloor"`
}

// Config is the full settings surface for one pipeline invocation.
type Config struct {
	Target      string `yaml:"target" env:"CDN_TARGET"`
	Environment string `yaml:"environment" env:"CDN_ENVIRONMENT"`
	Repository  string `yaml:"repository" env:"CDN_REPOSITORY"`
	Branch      string `yaml:"branch" env:"CDN_BRANCH"`
	BaseURL     string `yaml:"baseUrl" env:"CDN_BASE_URL"`
	Domain      string `yaml:"domain" env:"CDN_CUSTOM_DOMAIN"`

	BuildDir         string `yaml:"buildDir" env:"CDN_BUILD_DIR"`
	Version          string `yaml:"version" env:"CDN_VERSION"`
	Compression      string `yaml:"compression" env:"CDN_COMPRESSION"`
	WasmOptimization bool   `yaml:"wasmOptimization" env:"CDN_WASM_OPTIMIZATION"`

	GitHubToken string `yaml:"-" env:"GITHUB_TOKEN"`
	GitUsername string `yaml:"-" env:"GIT_USERNAME"`
	GitEmail    string `yaml:"-" env:"GIT_EMAIL"`

	Validate       bool `yaml:"validate" env:"CDN_VALIDATE"`
	Strict         bool `yaml:"strict" env:"CDN_STRICT"`
	DryRun         bool `yaml:"-"`
	TimeoutSeconds int  `yaml:"timeout" env:"CDN_TIMEOUT"`
	RetryAttempts  int  `yaml:"retryAttempts" env:"CDN_RETRY_ATTEMPTS"`

	ReportDir string `yaml:"reportDir" env:"CDN_REPORT_DIR"`

	Build     BuildConfig `yaml:"build"`
	Scan      ScanConfig  `yaml:"scan"`
	Estimates Estimates   `yaml:"estimates"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Target:           "github-pages",
		Environment:      "production",
		Branch:           "gh-pages",
		BuildDir:         "dist",
		Version:          "1.0.0",
		WasmOptimization: true,
		GitUsername:      "dataprism-deploy",
		GitEmail:         "deploy@users.noreply.github.com",
		Validate:         true,
		TimeoutSeconds:   30,
		RetryAttempts:    3,
		Scan: ScanConfig{
			Exclude: []string{"**/.git/**", "**/.DS_Store"},
		},
		Estimates: Estimates{
			CompressionRatio: 0.7,
			WasmMemoryFactor: 2,
			WasmMemoryFloor:  1 << 20,
		},
	}
}

// Load assembles the effective config. An explicit path must exist; the
// default file is optional. Environment variables override file values.
func Load(path string) (*Config, error) {
	// A .env next to the invocation is a convenience for local use;
	// absence is not an error.
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", model.ErrConfiguration, path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// fine, defaults + env only
	default:
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrConfiguration, path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", model.ErrConfiguration, err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	c.Repository = strings.TrimSpace(c.Repository)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.Estimates.CompressionRatio <= 0 || c.Estimates.CompressionRatio > 1 {
		c.Estimates.CompressionRatio = 0.7
	}
	if c.Estimates.WasmMemoryFactor <= 0 {
		c.Estimates.WasmMemoryFactor = 2
	}
	if c.Estimates.WasmMemoryFloor <= 0 {
		c.Estimates.WasmMemoryFloor = 1 << 20
	}
}

// RepoOwner splits Repository into its owner half, or "".
func (c *Config) RepoOwner() string {
	owner, _, ok := strings.Cut(c.Repository, "/")
	if !ok {
		return ""
	}
	return owner
}

// RepoName splits Repository into its name half, or "".
func (c *Config) RepoName() string {
	_, name, ok := strings.Cut(c.Repository, "/")
	if !ok {
		return ""
	}
	return name
}

// PagesURL derives the public URL for the configured target. An
// explicit BaseURL always wins; a custom domain comes next; otherwise
// the conventional owner.github.io layout applies, collapsing the
// /repo suffix for the user-site repository itself.
func (c *Config) PagesURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Domain != "" {
		return "https://" + c.Domain
	}
	owner, name := c.RepoOwner(), c.RepoName()
	if owner == "" {
		return ""
	}
	if strings.EqualFold(name, owner+".github.io") {
		return fmt.Sprintf("https://%s.github.io", owner)
	}
	return fmt.Sprintf("https://%s.github.io/%s", owner, name)
}

// ValidateFor checks the preconditions a target needs before the
// pipeline does anything. Credentials are deliberately not checked
// here: a dry run must succeed without them, so auth is verified at
// connection time instead.
func (c *Config) ValidateFor(target string) error {
	switch target {
	case "github-pages":
		if c.Repository == "" {
			return fmt.Errorf("%w: repository is required for github-pages (owner/repo)", model.ErrConfiguration)
		}
		if strings.Count(c.Repository, "/") != 1 {
			return fmt.Errorf("%w: repository %q must be owner/repo", model.ErrConfiguration, c.Repository)
		}
		if c.Branch == "" {
			return fmt.Errorf("%w: branch is required for github-pages", model.ErrConfiguration)
		}
	case "cloudflare-pages", "netlify", "vercel":
		// Stub targets have no working deploy path; their
		// preconditions are enforced when the provider rejects
		// the call.
	default:
		return fmt.Errorf("%w: %q", model.ErrProviderUnsupported, target)
	}
	return nil
}

// OptimizationFlags describes the transforms this pipeline assumes
// were applied to the bundle, recorded into manifest metadata.
func (c *Config) OptimizationFlags() []string {
	var flags []string
	if c.WasmOptimization {
		flags = append(flags, "wasm-streaming")
	}
	switch strings.ToLower(c.Compression) {
	case "", "none":
	default:
		flags = append(flags, strings.ToLower(c.Compression))
	}
	return flags
}

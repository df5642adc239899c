// Package pipeline orchestrates a deployment end to end: configure,
// scan, manifest, connect, deploy, validate. Steps run in order, fail
// fast before anything remote is touched, and a dry run stops at the
// preview without ever constructing a provider.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/manifest"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/provider"
	"github.com/srnarasim/dataprism-tooling/scanner"
)

// Step names, in execution order.
const (
	StepConfigure = "configure"
	StepScan      = "scan"
	StepManifest  = "manifest"
	StepPreview   = "preview"
	StepConnect   = "connect"
	StepDeploy    = "deploy"
	StepValidate  = "validate"
	StepRollback  = "rollback"
)

// DeploySteps is the full sequence a real deploy walks through, for
// UIs that render progress.
var DeploySteps = []string{StepConfigure, StepScan, StepManifest, StepConnect, StepDeploy, StepValidate}

// DryRunSteps is the sequence a dry run walks through.
var DryRunSteps = []string{StepConfigure, StepScan, StepManifest, StepPreview}

// Outcome carries everything a deployment run produced. Deployment is
// set even on failure when a transcript exists; Validation is nil when
// validation was skipped, and ValidationErr records a battery that
// could not run at all.
type Outcome struct {
	Deployment    *model.DeploymentResult
	Validation    *model.ValidationResult
	ValidationErr error
	Manifest      *model.AssetManifest
	Warnings      []manifest.SizeWarning
	Logs          []string
}

// Orchestrator drives deployments against a provider registry.
type Orchestrator struct {
	Registry *provider.Registry

	// Events receives step transitions when non-nil. The consumer
	// must drain it; sends block.
	Events chan<- Event

	// retryMin is the first connect-retry delay; tests shrink it.
	retryMin time.Duration
}

// New returns an orchestrator over the registry.
func New(reg *provider.Registry) *Orchestrator {
	return &Orchestrator{Registry: reg, retryMin: time.Second}
}

// state is the data threaded through one run.
type state struct {
	cfg       *config.Config
	deployID  string
	bundle    *model.AssetBundle
	manifest  *model.AssetManifest
	artifacts map[string][]byte
	warnings  []manifest.SizeWarning
	prov      provider.Provider
	buildMs   int64
	outcome   *Outcome
}

type step struct {
	name string
	fn   func(ctx context.Context, st *state, rec *Recorder) error
}

// Deploy runs the pipeline for cfg. The returned error reflects the
// deployment itself; validation findings ride in the outcome and never
// revert a published deploy.
func (o *Orchestrator) Deploy(ctx context.Context, cfg *config.Config) (*Outcome, error) {
	st := &state{cfg: cfg, outcome: &Outcome{}}
	rec := NewRecorder(o.Events)

	steps := []step{
		{StepConfigure, o.configure},
		{StepScan, o.scan},
		{StepManifest, o.buildManifest},
	}
	if cfg.DryRun {
		steps = append(steps, step{StepPreview, o.preview})
	} else {
		steps = append(steps,
			step{StepConnect, o.connect},
			step{StepDeploy, o.deploy},
		)
	}

	err := o.run(ctx, st, rec, steps)
	if err == nil && !cfg.DryRun {
		o.validateStep(ctx, st, rec)
	}

	st.outcome.Logs = rec.Logs()
	if st.outcome.Deployment != nil && st.outcome.Deployment.Metrics != nil {
		st.outcome.Deployment.Metrics.BuildTimeMs = st.buildMs
	}
	return st.outcome, err
}

func (o *Orchestrator) run(ctx context.Context, st *state, rec *Recorder, steps []step) error {
	for _, s := range steps {
		rec.StepStart(s.name)
		start := time.Now()
		if err := s.fn(ctx, st, rec); err != nil {
			rec.StepFailed(s.name, err)
			return fmt.Errorf("%s: %w", s.name, err)
		}
		rec.StepComplete(s.name, time.Since(start))
	}
	return nil
}

// configure checks everything that can be checked without side
// effects: target validity and its required settings. Credentials are
// left for connect so a dry run works without them.
func (o *Orchestrator) configure(ctx context.Context, st *state, rec *Recorder) error {
	cfg := st.cfg
	if !o.Registry.Supported(cfg.Target) {
		return fmt.Errorf("%w: %q (available: %v)", model.ErrProviderUnsupported, cfg.Target, o.Registry.Targets())
	}
	if err := cfg.ValidateFor(cfg.Target); err != nil {
		return err
	}
	rec.Logf("target %s, environment %s, build dir %s", cfg.Target, cfg.Environment, cfg.BuildDir)
	return nil
}

func (o *Orchestrator) scan(ctx context.Context, st *state, rec *Recorder) error {
	start := time.Now()
	bundle, err := scanner.Scan(st.cfg.BuildDir, scanner.Options{
		Include: st.cfg.Scan.Include,
		Exclude: st.cfg.Scan.Exclude,
	})
	if err != nil {
		return err
	}
	st.buildMs += time.Since(start).Milliseconds()
	st.bundle = bundle
	rec.Logf("scanned %d files, %d bytes", len(bundle.Files), bundle.TotalSize)
	return nil
}

func (o *Orchestrator) buildManifest(ctx context.Context, st *state, rec *Recorder) error {
	start := time.Now()
	cfg := st.cfg

	b := manifest.New(cfg)
	b.Context = manifest.ResolveBuildContext(cfg.BuildDir)
	m, err := b.Build(st.bundle.Contents())
	if err != nil {
		return err
	}

	st.manifest = m
	st.bundle.Manifest = m
	st.outcome.Manifest = m

	st.warnings = manifest.CheckSizeLimits(m)
	st.outcome.Warnings = st.warnings
	for _, w := range st.warnings {
		rec.Logf("size warning: %s", w)
	}

	if st.artifacts, err = b.Artifacts(m, cfg.Target, cfg.Domain, cfg.Environment); err != nil {
		return err
	}

	st.deployID = model.NewDeploymentID()
	if cfg.DryRun {
		st.deployID = model.DryRunID
	}
	st.bundle.Metadata = model.BundleMetadata{
		DeploymentID: st.deployID,
		Timestamp:    time.Now().UTC(),
		Target:       cfg.Target,
		Environment:  cfg.Environment,
	}

	st.buildMs += time.Since(start).Milliseconds()
	rec.Logf("manifest build %s, %d integrity entries", m.BuildHash, len(m.Integrity))
	return nil
}

// preview is the dry-run terminal step: it summarizes what would be
// published. No provider is constructed, connected or called.
func (o *Orchestrator) preview(ctx context.Context, st *state, rec *Recorder) error {
	res := &model.DeploymentResult{
		Success:      true,
		DeploymentID: model.DryRunID,
	}
	res.Log("dry run: no provider calls made")
	res.Log("would deploy %d files (%d bytes) to %s (%s)",
		len(st.bundle.Files), st.bundle.TotalSize, st.cfg.Target, st.cfg.Environment)
	for _, f := range st.bundle.Files {
		res.Log("  %s (%s, %d bytes)", f.Path, f.MimeType, f.Size)
	}
	res.Log("plus %d generated artifacts", len(st.artifacts))
	res.Log("manifest build %s", st.manifest.BuildHash)
	for _, w := range st.warnings {
		res.Log("size warning: %s", w)
	}
	res.Metrics = &model.DeploymentMetrics{
		BuildTimeMs:      st.buildMs,
		TotalFiles:       len(st.bundle.Files),
		TotalSize:        st.bundle.TotalSize,
		CompressionRatio: st.manifest.Metadata.CompressionRatio,
	}
	st.outcome.Deployment = res
	return nil
}

// connect constructs the provider and proves the credentials work.
// Transient connectivity errors get the documented backoff schedule;
// a still-failing connection aborts before any upload.
func (o *Orchestrator) connect(ctx context.Context, st *state, rec *Recorder) error {
	prov, err := o.Registry.Get(st.cfg.Target, st.cfg)
	if err != nil {
		return err
	}
	st.prov = prov

	b := NewBackoff(5 * time.Second)
	b.Min = o.retryMin
	if err := WithRetry(ctx, st.cfg.RetryAttempts, b, prov.TestConnection); err != nil {
		return err
	}
	rec.Logf("connected to %s", prov.Name())
	return nil
}

// deploy hands the payload to the provider. Provider errors surface
// as-is: the push already retries internally where that is safe.
func (o *Orchestrator) deploy(ctx context.Context, st *state, rec *Recorder) error {
	payload := &provider.Payload{
		ID:        st.deployID,
		Bundle:    st.bundle,
		Artifacts: st.artifacts,
	}
	res, err := st.prov.Deploy(ctx, payload)
	st.outcome.Deployment = res
	if err != nil {
		return err
	}
	rec.Logf("deployed %s to %s", res.DeploymentID, res.URL)
	return nil
}

// validateStep runs the battery against the published URL. It never
// fails the pipeline: the deployment is already live, so findings are
// reported, not acted on.
func (o *Orchestrator) validateStep(ctx context.Context, st *state, rec *Recorder) {
	if !st.cfg.Validate {
		rec.StepSkipped(StepValidate, "disabled")
		return
	}
	url := st.outcome.Deployment.URL
	if url == "" {
		rec.StepSkipped(StepValidate, "no deployment URL")
		return
	}

	rec.StepStart(StepValidate)
	start := time.Now()
	vres, err := st.prov.Validate(ctx, url)
	if err != nil {
		st.outcome.ValidationErr = err
		rec.StepFailed(StepValidate, err)
		return
	}
	st.outcome.Validation = vres
	if vres.Success {
		rec.StepComplete(StepValidate, time.Since(start))
		return
	}
	rec.Logf("validation found %d failed, %d warnings", vres.Failed, vres.Warnings)
	rec.StepFailed(StepValidate, fmt.Errorf("%d checks failed, %d warnings", vres.Failed, vres.Warnings))
}

// Rollback reverts to a prior deployment: configure, connect, then the
// provider's rollback.
func (o *Orchestrator) Rollback(ctx context.Context, cfg *config.Config, deploymentID string) (*model.DeploymentResult, error) {
	st := &state{cfg: cfg, outcome: &Outcome{}}
	rec := NewRecorder(o.Events)

	err := o.run(ctx, st, rec, []step{
		{StepConfigure, o.configure},
		{StepConnect, o.connect},
		{StepRollback, func(ctx context.Context, st *state, rec *Recorder) error {
			res, err := st.prov.Rollback(ctx, deploymentID)
			st.outcome.Deployment = res
			if err != nil {
				return err
			}
			rec.Logf("rolled back to %s", deploymentID)
			return nil
		}},
	})
	if st.outcome.Deployment == nil {
		st.outcome.Deployment = &model.DeploymentResult{DeploymentID: deploymentID, Logs: rec.Logs()}
		if err != nil {
			st.outcome.Deployment.Error = err.Error()
		}
	}
	return st.outcome.Deployment, err
}

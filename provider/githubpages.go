package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/validate"
)

// stagingPrefix names the temp dirs deployments stage in, so Cleanup
// can find leftovers from crashed runs.
const stagingPrefix = "dataprism-deploy-"

// gitRunner executes one git command and returns its combined output.
// Swappable so tests can run the deploy flow without a git binary or a
// network.
type gitRunner func(ctx context.Context, dir string, env []string, args ...string) (string, error)

// GitHubPages publishes bundles by force-pushing a single commit to a
// Pages branch. The force push is the atomic publish: the site serves
// either the old tree or the new one, never a mix, and the branch log
// doubles as deployment history.
type GitHubPages struct {
	cfg *config.Config
	run gitRunner

	// minBackoff is the first retry delay for the push; tests
	// shrink it.
	minBackoff time.Duration
}

// NewGitHubPages builds the provider after checking target
// preconditions. Credentials are not checked here; see TestConnection.
func NewGitHubPages(cfg *config.Config) (*GitHubPages, error) {
	if err := cfg.ValidateFor("github-pages"); err != nil {
		return nil, err
	}
	return &GitHubPages{cfg: cfg, run: runGit, minBackoff: time.Second}, nil
}

func (g *GitHubPages) Name() string { return "github-pages" }

func (g *GitHubPages) remoteURL() string {
	return fmt.Sprintf("https://github.com/%s.git", g.cfg.Repository)
}

// gitEnv returns the environment for authenticated git commands: an
// askpass script that feeds the token, and no terminal prompts so a
// bad token fails instead of hanging CI.
func (g *GitHubPages) gitEnv() (env []string, cleanup func(), err error) {
	if g.cfg.GitHubToken == "" {
		return nil, nil, fmt.Errorf("%w: GITHUB_TOKEN is not set", model.ErrConnectivity)
	}
	script, err := os.CreateTemp("", "dataprism-askpass-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create askpass script: %w", err)
	}
	fmt.Fprintf(script, "#!/bin/sh\necho '%s'\n", g.cfg.GitHubToken)
	script.Close()
	os.Chmod(script.Name(), 0o700)
	return []string{
		"GIT_ASKPASS=" + script.Name(),
		"GIT_TERMINAL_PROMPT=0",
	}, func() { os.Remove(script.Name()) }, nil
}

// TestConnection verifies the token is present and the remote branch
// namespace is reachable. Read-only: ls-remote never mutates.
func (g *GitHubPages) TestConnection(ctx context.Context) error {
	env, cleanup, err := g.gitEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := g.run(ctx, "", env, "ls-remote", g.remoteURL(), "HEAD"); err != nil {
		return fmt.Errorf("%w: %s unreachable: %v", model.ErrConnectivity, g.cfg.Repository, err)
	}
	return nil
}

// Deploy stages the payload into a temp clone of the Pages branch and
// force-pushes one commit whose subject carries the deployment ID.
func (g *GitHubPages) Deploy(ctx context.Context, payload *Payload) (*model.DeploymentResult, error) {
	res := &model.DeploymentResult{DeploymentID: payload.ID}
	start := time.Now()

	fail := func(err error) (*model.DeploymentResult, error) {
		res.Error = err.Error()
		res.Log("deployment failed: %v", err)
		return res, err
	}

	env, cleanup, err := g.gitEnv()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	staging, err := os.MkdirTemp("", stagingPrefix+"*")
	if err != nil {
		return fail(fmt.Errorf("create staging dir: %w", err))
	}
	defer os.RemoveAll(staging)
	res.Log("staging in %s", staging)

	branch := g.cfg.Branch
	if _, err := g.run(ctx, "", env, "clone", "--depth", "50", "--single-branch",
		"--branch", branch, g.remoteURL(), staging); err != nil {
		// First deploy to this branch: start a fresh history.
		res.Log("branch %s not cloneable, initializing fresh history", branch)
		if _, err := g.run(ctx, "", env, "init", "-b", branch, staging); err != nil {
			return fail(fmt.Errorf("git init: %w", err))
		}
		if _, err := g.run(ctx, staging, env, "remote", "add", "origin", g.remoteURL()); err != nil {
			return fail(fmt.Errorf("git remote add: %w", err))
		}
	} else {
		cleared, err := clearWorktree(staging)
		if err != nil {
			return fail(fmt.Errorf("clear staging: %w", err))
		}
		res.Log("cloned %s@%s, cleared %d stale entries", g.cfg.Repository, branch, cleared)
	}

	files := payload.Files()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dst := filepath.Join(staging, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fail(fmt.Errorf("stage %s: %w", name, err))
		}
		if err := os.WriteFile(dst, files[name], 0o644); err != nil {
			return fail(fmt.Errorf("stage %s: %w", name, err))
		}
	}
	res.Log("staged %d files (%d bytes of assets)", len(names), payload.Bundle.TotalSize)

	if _, err := g.run(ctx, staging, env, "add", "-A"); err != nil {
		return fail(fmt.Errorf("git add: %w", err))
	}

	msg := fmt.Sprintf("deploy %s (%s)", payload.ID, g.cfg.Environment)
	if m := payload.Bundle.Manifest; m != nil {
		msg += fmt.Sprintf("\n\nbuild %s, %d assets", m.BuildHash, len(m.Integrity))
	}
	// --allow-empty: redeploying identical content must still record
	// a deployment in the branch history.
	if _, err := g.run(ctx, staging, env,
		"-c", "user.name="+g.cfg.GitUsername,
		"-c", "user.email="+g.cfg.GitEmail,
		"commit", "--allow-empty", "-m", msg); err != nil {
		return fail(fmt.Errorf("git commit: %w", err))
	}
	res.Log("committed %s", payload.ID)

	// The force push is the publish. It is idempotent, so transient
	// network failures are safe to retry with exponential backoff.
	if err := g.pushWithRetry(ctx, res, staging, env, "HEAD:refs/heads/"+branch); err != nil {
		return fail(fmt.Errorf("%w: push: %v", model.ErrConnectivity, err))
	}

	sha := "unknown"
	if out, err := g.run(ctx, staging, env, "rev-parse", "--short", "HEAD"); err == nil {
		sha = strings.TrimSpace(out)
	}
	res.Log("published %s@%s at %s", g.cfg.Repository, branch, sha)

	res.Success = true
	res.URL = g.cfg.PagesURL()
	res.Metrics = &model.DeploymentMetrics{
		DeployTimeMs:     time.Since(start).Milliseconds(),
		TotalFiles:       len(names),
		TotalSize:        payload.Bundle.TotalSize,
		CompressionRatio: manifestRatio(payload.Bundle.Manifest),
	}
	return res, nil
}

func manifestRatio(m *model.AssetManifest) float64 {
	if m == nil {
		return 0
	}
	return m.Metadata.CompressionRatio
}

// Validate runs the shared post-deploy battery. The checks are plain
// HTTP probes, identical for every Pages-style host, so nothing here
// is GitHub-specific beyond the policy knobs.
func (g *GitHubPages) Validate(ctx context.Context, url string) (*model.ValidationResult, error) {
	v := validate.New(g.cfg.Strict)
	v.Client = &http.Client{Timeout: time.Duration(g.cfg.TimeoutSeconds) * time.Second}
	return v.ValidateDeployment(ctx, url)
}

// pushWithRetry force-pushes refspec, retrying with 1s, 2s, 4s...
// delays capped at 10s. Attempt count comes from config.
func (g *GitHubPages) pushWithRetry(ctx context.Context, res *model.DeploymentResult, dir string, env []string, refspec string) error {
	attempts := g.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	b := &backoff.Backoff{
		Min:    g.minBackoff,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: false,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := g.run(ctx, dir, env, "push", "--force", "origin", refspec)
		if err == nil {
			if attempt > 1 {
				res.Log("push succeeded on attempt %d", attempt)
			}
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := b.Duration()
		res.Log("push attempt %d failed (%v), retrying in %s", attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// Rollback force-pushes the commit recorded for deploymentID, making
// the old tree the published one again.
func (g *GitHubPages) Rollback(ctx context.Context, deploymentID string) (*model.DeploymentResult, error) {
	res := &model.DeploymentResult{DeploymentID: deploymentID}

	fail := func(err error) (*model.DeploymentResult, error) {
		res.Error = err.Error()
		res.Log("rollback failed: %v", err)
		return res, err
	}

	if deploymentID == "" {
		return fail(fmt.Errorf("%w: rollback needs a deployment ID", model.ErrNoPriorDeployment))
	}

	env, cleanup, err := g.gitEnv()
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	staging, err := os.MkdirTemp("", stagingPrefix+"*")
	if err != nil {
		return fail(fmt.Errorf("create staging dir: %w", err))
	}
	defer os.RemoveAll(staging)

	branch := g.cfg.Branch
	if _, err := g.run(ctx, "", env, "clone", "--depth", "100", "--single-branch",
		"--branch", branch, g.remoteURL(), staging); err != nil {
		return fail(fmt.Errorf("%w: branch %s has no deployment history", model.ErrNoPriorDeployment, branch))
	}

	out, err := g.run(ctx, staging, env, "log", "--format=%H%x09%s")
	if err != nil {
		return fail(fmt.Errorf("read history: %w", err))
	}

	sha := ""
	for _, line := range strings.Split(out, "\n") {
		hash, subject, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		if DeployIDFromSubject(subject) == deploymentID {
			sha = hash
			break
		}
	}
	if sha == "" {
		return fail(fmt.Errorf("%w: %s not in the last 100 deployments", model.ErrNoPriorDeployment, deploymentID))
	}
	res.Log("found %s at commit %s", deploymentID, sha[:min(12, len(sha))])

	if err := g.pushWithRetry(ctx, res, staging, env, sha+":refs/heads/"+branch); err != nil {
		return fail(fmt.Errorf("%w: push: %v", model.ErrConnectivity, err))
	}

	res.Log("rolled back %s@%s to %s", g.cfg.Repository, branch, deploymentID)
	res.Success = true
	res.URL = g.cfg.PagesURL()
	return res, nil
}

// ListDeployments reads the branch log and maps commits back onto
// deployments. A branch that does not exist yet is an empty history,
// not an error.
func (g *GitHubPages) ListDeployments(ctx context.Context, limit int) ([]model.DeploymentRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	env, cleanup, err := g.gitEnv()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	branch := g.cfg.Branch
	out, err := g.run(ctx, "", env, "ls-remote", g.remoteURL(), "refs/heads/"+branch)
	if err != nil {
		return nil, fmt.Errorf("%w: %s unreachable: %v", model.ErrConnectivity, g.cfg.Repository, err)
	}
	if strings.TrimSpace(out) == "" {
		return []model.DeploymentRecord{}, nil
	}

	staging, err := os.MkdirTemp("", stagingPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if _, err := g.run(ctx, "", env, "clone", "--depth", strconv.Itoa(limit), "--single-branch",
		"--branch", branch, g.remoteURL(), staging); err != nil {
		return nil, fmt.Errorf("%w: clone %s: %v", model.ErrConnectivity, g.cfg.Repository, err)
	}

	out, err = g.run(ctx, staging, env, "log", "--format=%H%x09%ct%x09%an%x09%s", "-n", strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return ParseHistory(out, limit), nil
}

// ParseHistory turns tab-separated git log output (%H, %ct, %an, %s)
// into deployment records, newest first. Commits that were not made by
// this tool keep an empty ID but stay in the list, so manual pushes to
// the Pages branch remain visible.
func ParseHistory(out string, limit int) []model.DeploymentRecord {
	records := []model.DeploymentRecord{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		epoch, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		records = append(records, model.DeploymentRecord{
			ID:        DeployIDFromSubject(parts[3]),
			CommitSHA: parts[0],
			Message:   parts[3],
			Author:    parts[2],
			Timestamp: time.Unix(epoch, 0).UTC(),
			Current:   len(records) == 0,
		})
		if len(records) == limit {
			break
		}
	}
	return records
}

// DeployIDFromSubject extracts the deployment ID from a commit subject
// written by Deploy, or returns "".
func DeployIDFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, "deploy ")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, " ")
	if !model.IsDeploymentID(id) {
		return ""
	}
	return id
}

// Status snapshots the remote branch. An unreachable remote is a
// status, not an error.
func (g *GitHubPages) Status(ctx context.Context) (*model.ProviderStatus, error) {
	status := &model.ProviderStatus{
		Target: g.Name(),
		Repo:   g.cfg.Repository,
		Branch: g.cfg.Branch,
		URL:    g.cfg.PagesURL(),
	}

	env, cleanup, err := g.gitEnv()
	if err != nil {
		return status, nil
	}
	defer cleanup()

	out, err := g.run(ctx, "", env, "ls-remote", g.remoteURL(), "refs/heads/"+g.cfg.Branch)
	if err != nil {
		return status, nil
	}
	status.Reachable = true
	if sha, _, ok := strings.Cut(strings.TrimSpace(out), "\t"); ok {
		status.CommitSHA = sha
	}
	return status, nil
}

// Cleanup removes staging directories older than a day that crashed
// runs left in the system temp dir.
func (g *GitHubPages) Cleanup(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(os.TempDir(), stagingPrefix+"*"))
	if err != nil {
		return nil
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, dir := range entries {
		info, err := os.Stat(dir)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logrus.WithError(err).Warnf("cleanup: could not remove %s", dir)
			continue
		}
		logrus.Debugf("cleanup: removed stale staging dir %s", dir)
	}
	return nil
}

func clearWorktree(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// runGit executes git with the extra environment appended, returning
// combined output. The output rides along in the error because git
// writes its diagnosis to stderr.
func runGit(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %v: %s", args[0], err, firstLine(string(out)))
	}
	return string(out), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
)

// fakeGit scripts git invocations so deploy flows run without a git
// binary or a network.
type fakeGit struct {
	mu      sync.Mutex
	calls   [][]string
	outputs map[string]string
	fail    map[string]int // subcommand -> failures to inject, -1 = always
}

func newFakeGit() *fakeGit {
	return &fakeGit{outputs: map[string]string{}, fail: map[string]int{}}
}

func subcommand(args []string) string {
	for _, a := range args {
		switch a {
		case "clone", "init", "remote", "add", "commit", "push", "rev-parse", "log", "ls-remote":
			return a
		}
	}
	return args[0]
}

func (f *fakeGit) run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	sub := subcommand(args)
	if n := f.fail[sub]; n != 0 {
		if n > 0 {
			f.fail[sub]--
		}
		return "", fmt.Errorf("scripted %s failure", sub)
	}
	return f.outputs[sub], nil
}

func (f *fakeGit) count(sub string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if subcommand(call) == sub {
			n++
		}
	}
	return n
}

func (f *fakeGit) find(sub string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if subcommand(call) == sub {
			return call
		}
	}
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Repository = "srnarasim/dataprism-cdn"
	cfg.GitHubToken = "ghp_testtoken"
	return cfg
}

func testProvider(t *testing.T, fake *fakeGit) *GitHubPages {
	t.Helper()
	g, err := NewGitHubPages(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	g.run = fake.run
	g.minBackoff = time.Millisecond
	return g
}

func testPayload() *Payload {
	bundle := model.NewBundle([]model.AssetFile{
		{Path: "dataprism-core.min.js", Content: []byte("core"), Size: 4},
		{Path: "engine.wasm", Content: []byte{0x00}, Size: 1},
	})
	return &Payload{
		ID:        "deploy_1712345678901_a1b2c3",
		Bundle:    bundle,
		Artifacts: map[string][]byte{"manifest.json": []byte("{}\n")},
	}
}

func TestDeployRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubToken = ""
	g, err := NewGitHubPages(cfg)
	if err != nil {
		t.Fatal(err)
	}
	g.run = newFakeGit().run

	if err := g.TestConnection(context.Background()); !errors.Is(err, model.ErrConnectivity) {
		t.Errorf("TestConnection err = %v, want ErrConnectivity", err)
	}
	res, err := g.Deploy(context.Background(), testPayload())
	if !errors.Is(err, model.ErrConnectivity) {
		t.Errorf("Deploy err = %v, want ErrConnectivity", err)
	}
	if res == nil || res.Success || res.Error == "" {
		t.Errorf("failed deploy must carry its transcript: %+v", res)
	}
}

func TestDeployHappyPath(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["rev-parse"] = "abc1234\n"
	g := testProvider(t, fake)
	payload := testPayload()

	res, err := g.Deploy(context.Background(), payload)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	if res.DeploymentID != payload.ID {
		t.Errorf("DeploymentID = %q", res.DeploymentID)
	}
	if res.URL != "https://srnarasim.github.io/dataprism-cdn" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Metrics == nil || res.Metrics.TotalFiles != 3 || res.Metrics.TotalSize != 5 {
		t.Errorf("Metrics = %+v", res.Metrics)
	}
	if len(res.Logs) == 0 {
		t.Error("deploy must leave a transcript")
	}

	for _, sub := range []string{"clone", "add", "commit", "push"} {
		if fake.count(sub) == 0 {
			t.Errorf("missing git %s call", sub)
		}
	}

	commit := fake.find("commit")
	joined := strings.Join(commit, " ")
	if !strings.Contains(joined, "deploy "+payload.ID) {
		t.Errorf("commit subject must carry the deployment ID: %v", commit)
	}
	if !strings.Contains(joined, "--allow-empty") {
		t.Errorf("commit must allow empty redeploys: %v", commit)
	}
	if !strings.Contains(joined, "user.name="+g.cfg.GitUsername) {
		t.Errorf("commit must pin the identity: %v", commit)
	}

	push := fake.find("push")
	if !strings.Contains(strings.Join(push, " "), "--force origin HEAD:refs/heads/gh-pages") {
		t.Errorf("push = %v", push)
	}
}

func TestDeployInitWhenBranchMissing(t *testing.T) {
	fake := newFakeGit()
	fake.fail["clone"] = 1
	g := testProvider(t, fake)

	res, err := g.Deploy(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	if fake.count("init") != 1 || fake.count("remote") != 1 {
		t.Error("missing init fallback for a fresh branch")
	}
}

func TestDeployPushRetriesThenFails(t *testing.T) {
	fake := newFakeGit()
	fake.fail["push"] = -1
	g := testProvider(t, fake)

	res, err := g.Deploy(context.Background(), testPayload())
	if !errors.Is(err, model.ErrConnectivity) {
		t.Errorf("err = %v, want ErrConnectivity", err)
	}
	if got := fake.count("push"); got != g.cfg.RetryAttempts {
		t.Errorf("push attempts = %d, want %d", got, g.cfg.RetryAttempts)
	}
	if res.Success || res.Error == "" {
		t.Errorf("res = %+v", res)
	}
}

func TestDeployPushRetrySucceeds(t *testing.T) {
	fake := newFakeGit()
	fake.fail["push"] = 1
	g := testProvider(t, fake)

	res, err := g.Deploy(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if !res.Success || fake.count("push") != 2 {
		t.Errorf("push count = %d, res = %+v", fake.count("push"), res)
	}
}

func TestRollback(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["log"] = "aaa111\tdeploy deploy_1712345678902_x1y2z3 (production)\n" +
		"bbb222\tdeploy deploy_1712345678901_a1b2c3 (production)\n"
	g := testProvider(t, fake)

	res, err := g.Rollback(context.Background(), "deploy_1712345678901_a1b2c3")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	push := fake.find("push")
	if !strings.Contains(strings.Join(push, " "), "bbb222:refs/heads/gh-pages") {
		t.Errorf("push = %v, want prior commit refspec", push)
	}
}

func TestRollbackUnknownID(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["log"] = "aaa111\tdeploy deploy_1712345678902_x1y2z3 (production)\n"
	g := testProvider(t, fake)

	if _, err := g.Rollback(context.Background(), "deploy_0000000000000_zzzzzz"); !errors.Is(err, model.ErrNoPriorDeployment) {
		t.Errorf("err = %v, want ErrNoPriorDeployment", err)
	}
}

func TestRollbackEmptyHistory(t *testing.T) {
	fake := newFakeGit()
	fake.fail["clone"] = 1
	g := testProvider(t, fake)

	if _, err := g.Rollback(context.Background(), "deploy_1712345678901_a1b2c3"); !errors.Is(err, model.ErrNoPriorDeployment) {
		t.Errorf("err = %v, want ErrNoPriorDeployment", err)
	}

	if _, err := g.Rollback(context.Background(), ""); !errors.Is(err, model.ErrNoPriorDeployment) {
		t.Errorf("empty id: err = %v, want ErrNoPriorDeployment", err)
	}
}

func TestListDeployments(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["ls-remote"] = "aaa111\trefs/heads/gh-pages\n"
	fake.outputs["log"] = "aaa111\t1712345679\tdataprism-deploy\tdeploy deploy_1712345678902_x1y2z3 (production)\n" +
		"bbb222\t1712345678\tdataprism-deploy\tdeploy deploy_1712345678901_a1b2c3 (staging)\n" +
		"ccc333\t1712345600\tsomeone\tmanual fix for index.html\n"
	g := testProvider(t, fake)

	records, err := g.ListDeployments(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListDeployments: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %+v", records)
	}
	if records[0].ID != "deploy_1712345678902_x1y2z3" || !records[0].Current {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Current {
		t.Error("only the newest record is current")
	}
	if records[2].ID != "" || records[2].Message != "manual fix for index.html" {
		t.Errorf("manual commit record = %+v", records[2])
	}
}

func TestListDeploymentsEmptyBranch(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["ls-remote"] = ""
	g := testProvider(t, fake)

	records, err := g.ListDeployments(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListDeployments: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %+v, want empty", records)
	}
	if fake.count("clone") != 0 {
		t.Error("no branch means no clone")
	}
}

func TestStatus(t *testing.T) {
	fake := newFakeGit()
	fake.outputs["ls-remote"] = "abc123def\trefs/heads/gh-pages\n"
	g := testProvider(t, fake)

	status, err := g.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Reachable || status.CommitSHA != "abc123def" {
		t.Errorf("status = %+v", status)
	}
	if status.URL != "https://srnarasim.github.io/dataprism-cdn" {
		t.Errorf("URL = %q", status.URL)
	}

	fake.fail["ls-remote"] = -1
	status, err = g.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Reachable {
		t.Error("unreachable remote must report Reachable=false")
	}
}

func TestDeployIDFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"deploy deploy_1712345678901_a1b2c3 (production)", "deploy_1712345678901_a1b2c3"},
		{"deploy deploy_1712345678901_a1b2c3", "deploy_1712345678901_a1b2c3"},
		{"manual fix", ""},
		{"deploy something-else entirely", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DeployIDFromSubject(tc.subject); got != tc.want {
			t.Errorf("DeployIDFromSubject(%q) = %q, want %q", tc.subject, got, tc.want)
		}
	}
}

func TestParseHistorySkipsGarbage(t *testing.T) {
	out := "aaa\t1712345679\tme\tdeploy deploy_1712345678902_x1y2z3 (production)\n" +
		"not a log line\n" +
		"bbb\tnotanumber\tme\tbroken\n"
	records := ParseHistory(out, 10)
	if len(records) != 1 {
		t.Errorf("records = %+v, want 1 valid entry", records)
	}
}

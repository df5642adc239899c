package manifest

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// BuildContext is the git provenance stamped into manifest metadata.
type BuildContext struct {
	Commit string
	Branch string
}

// ResolveBuildContext asks git for the current commit and branch of
// dir. Builds from an exported tarball are normal, so failures degrade
// to "unknown" instead of erroring.
func ResolveBuildContext(dir string) BuildContext {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bc := BuildContext{Commit: "unknown", Branch: "unknown"}
	if out, err := gitOutput(ctx, dir, "rev-parse", "--short", "HEAD"); err == nil {
		bc.Commit = out
	}
	if out, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		bc.Branch = out
	}
	return bc
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

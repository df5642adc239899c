package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/style"
)

var buildSkipManifest bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the configured build command, then generate manifests",
	Long: `Runs build.command from the configuration (a shell command, typically
the bundler), then scans the build dir and writes the manifest files
into it, leaving a bundle ready for deploy.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildSkipManifest, "skip-manifest", false, "run the build command only, no manifest generation")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Build.Command == "" {
		return fmt.Errorf("%w: build.command is not configured", model.ErrConfiguration)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN BUILD"))
	fmt.Printf("  %s%s\n\n", style.Key.Render("Command"), style.Val.Render(cfg.Build.Command))

	sh := exec.CommandContext(ctx, "sh", "-c", cfg.Build.Command)
	sh.Dir = cfg.Build.Dir
	sh.Stdout = os.Stdout
	sh.Stderr = os.Stderr
	if err := sh.Run(); err != nil {
		return fmt.Errorf("build command failed: %w", err)
	}

	if buildSkipManifest {
		fmt.Println(style.DimText.Render("  manifest generation skipped"))
		return nil
	}
	fmt.Println()
	return generateManifest(cfg, cfg.BuildDir)
}

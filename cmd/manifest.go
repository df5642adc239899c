package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/manifest"
	"github.com/srnarasim/dataprism-tooling/scanner"
	"github.com/srnarasim/dataprism-tooling/style"
)

var (
	manifestOut     string
	manifestBaseURL string
	manifestVersion string
)

var manifestCmd = &cobra.Command{
	Use:     "generate-manifest [build-dir]",
	Aliases: []string{"manifest"},
	Short:   "Generate manifest and integrity files for a bundle",
	Long: `Scans a built bundle and writes its asset manifest, integrity file
and plugin loader manifest without deploying anything. The same files
are generated during deploy; this command exists for build pipelines
that publish through other means.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	f := manifestCmd.Flags()
	f.StringVarP(&manifestOut, "output", "o", "", "output directory (default: the build dir)")
	f.StringVar(&manifestBaseURL, "base-url", "", "base URL recorded in the loader manifest")
	f.StringVar(&manifestVersion, "version", "", "bundle version recorded in the manifest")
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.BuildDir = args[0]
	}
	if manifestBaseURL != "" {
		cfg.BaseURL = manifestBaseURL
	}
	if manifestVersion != "" {
		cfg.Version = manifestVersion
	}
	out := manifestOut
	if out == "" {
		out = cfg.BuildDir
	}
	return generateManifest(cfg, out)
}

// generateManifest scans, builds and writes the manifest artifacts.
// Shared by the manifest and build commands.
func generateManifest(cfg *config.Config, out string) error {
	bundle, err := scanner.Scan(cfg.BuildDir, scanner.Options{
		Include: cfg.Scan.Include,
		Exclude: cfg.Scan.Exclude,
	})
	if err != nil {
		return err
	}

	b := manifest.New(cfg)
	b.Context = manifest.ResolveBuildContext(cfg.BuildDir)
	m, err := b.Build(bundle.Contents())
	if err != nil {
		return err
	}

	artifacts, err := b.Artifacts(m, cfg.Target, cfg.Domain, cfg.Environment)
	if err != nil {
		return err
	}

	// Only the manifest trio is written here; side files like
	// .nojekyll belong to the deploy step.
	written := []string{manifest.ManifestFile, manifest.IntegrityFileName, manifest.LoaderManifestFile}
	for _, name := range written {
		data, ok := artifacts[name]
		if !ok {
			continue
		}
		path := filepath.Join(out, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN MANIFEST"))
	kv := func(k, v string) {
		fmt.Printf("  %s%s\n", style.Key.Render(k), style.Val.Render(v))
	}
	kv("Assets", fmt.Sprintf("%d files, %s", len(bundle.Files), style.Size(bundle.TotalSize)))
	kv("Build hash", m.BuildHash)
	kv("Version", m.Version)
	if m.Assets.Core != nil {
		kv("Core", m.Assets.Core.Filename)
	}
	kv("Plugins", fmt.Sprintf("%d", len(m.Assets.Plugins)))
	kv("WASM", fmt.Sprintf("%d", len(m.Assets.Wasm)))
	kv("Output", out)

	for _, w := range manifest.CheckSizeLimits(m) {
		fmt.Printf("  %s %s\n", style.DotWarning, style.Warning.Render(w.String()))
	}
	fmt.Println()
	return nil
}

package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
)

var (
	cfgPath         string
	flagTarget      string
	flagEnvironment string
	flagRepository  string
	flagBranch      string
	flagTimeout     int
	flagVerbose     bool
	flagPlain       bool
)

var rootCmd = &cobra.Command{
	Use:   "dataprism-cdn",
	Short: "Deploy and validate DataPrism bundles on CDN providers",
	Long: `DataPrism CDN pipeline: scan a built bundle, generate its manifest,
publish it to a CDN provider, and validate what actually went live.

Assets are pinned with SHA-384 subresource integrity, the manifest
carries a deterministic build hash, and publishing is a single atomic
push. A post-deploy battery then checks headers, integrity and WASM
delivery from the consumer's side of the CDN.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		switch {
		case flagVerbose:
			logrus.SetLevel(logrus.DebugLevel)
		default:
			logrus.SetLevel(logrus.WarnLevel)
			if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
				logrus.SetLevel(lvl)
			}
		}
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "", "config file (default "+config.DefaultFile+")")
	pf.StringVar(&flagTarget, "target", "", "deployment target (github-pages, cloudflare-pages, netlify, vercel)")
	pf.StringVar(&flagEnvironment, "environment", "", "deployment environment (production, staging, ...)")
	pf.StringVar(&flagRepository, "repository", "", "owner/repo for git-backed targets")
	pf.StringVar(&flagBranch, "branch", "", "publish branch for git-backed targets")
	pf.IntVar(&flagTimeout, "timeout", 0, "network timeout in seconds")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&flagPlain, "plain", false, "plain output, no TUI")
}

// loadConfig layers flags the user actually set on top of file and
// environment settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flag("target"); f != nil && f.Changed {
		cfg.Target = strings.ToLower(strings.TrimSpace(flagTarget))
	}
	if f := cmd.Flag("environment"); f != nil && f.Changed {
		cfg.Environment = flagEnvironment
	}
	if f := cmd.Flag("repository"); f != nil && f.Changed {
		cfg.Repository = flagRepository
	}
	if f := cmd.Flag("branch"); f != nil && f.Changed {
		cfg.Branch = flagBranch
	}
	if flagTimeout > 0 {
		cfg.TimeoutSeconds = flagTimeout
	}
	return cfg, nil
}

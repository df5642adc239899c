package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/report"
	"github.com/srnarasim/dataprism-tooling/style"
	"github.com/srnarasim/dataprism-tooling/validate"
)

var (
	validateStrict    bool
	validateSkipPerf  bool
	validateReportDir string
)

var validateCmd = &cobra.Command{
	Use:   "validate [url]",
	Short: "Run the validation battery against a deployed bundle",
	Long: `Probes a live deployment the way a browser would: connectivity,
manifest integrity, WASM content types and streaming headers, CORS,
caching, security headers, sensitive-file exposure and load timings.

Without a URL the deployment URL is derived from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateCmd,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	f := validateCmd.Flags()
	f.BoolVar(&validateStrict, "strict", false, "treat warnings as failures")
	f.BoolVar(&validateSkipPerf, "skip-performance", false, "skip the load-timing check")
	f.StringVar(&validateReportDir, "report-dir", "", "write a JSON validation report here")
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if validateStrict {
		cfg.Strict = true
	}
	if f := cmd.Flag("report-dir"); f.Changed {
		cfg.ReportDir = validateReportDir
	}

	url := cfg.PagesURL()
	if len(args) == 1 {
		url = args[0]
	}
	if url == "" {
		return fmt.Errorf("%w: no URL to validate; pass one or set repository/baseUrl", model.ErrConfiguration)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	v := validate.New(cfg.Strict)
	v.Client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	v.SkipPerformance = validateSkipPerf

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN VALIDATE"))
	fmt.Printf("  %s%s\n\n", style.Key.Render("URL"), style.Val.Render(url))

	res, err := v.ValidateDeployment(ctx, url)
	if err != nil {
		return err
	}

	for _, c := range res.Checks {
		printCheckRow(c)
	}

	if p := res.Performance; p != nil {
		fmt.Println()
		fmt.Println(style.TableHeader.Render("  Performance"))
		kv := func(k, val string) {
			fmt.Printf("  %s%s\n", style.Key.Render(k), style.Val.Render(val))
		}
		kv("Load time", fmt.Sprintf("%d ms", p.LoadTimeMs))
		if p.WasmLoadTimeMs >= 0 {
			kv("WASM load", fmt.Sprintf("%d ms", p.WasmLoadTimeMs))
		} else {
			kv("WASM load", "not measured")
		}
		if p.TotalSize > 0 {
			kv("Bundle size", style.Size(p.TotalSize))
		}
		if p.CompressionRatio > 0 {
			kv("Compression", fmt.Sprintf("%.0f%%", p.CompressionRatio*100))
		}
		for plugin, ms := range p.PluginLoadTimesMs {
			kv("Plugin "+plugin, fmt.Sprintf("%d ms", ms))
		}
	}

	if len(res.Security) > 0 {
		fmt.Println()
		fmt.Println(style.TableHeader.Render("  Security"))
		for _, s := range res.Security {
			fmt.Printf("  %s %s %s\n", style.CheckDot(s.Status), padRight(s.Name, 26), s.Description)
			if s.Recommendation != "" && s.Status != model.CheckPassed {
				fmt.Printf("      %s\n", style.DimText.Render(s.Recommendation))
			}
		}
	}

	writeValidationReport(cfg, res)

	fmt.Println()
	summary := fmt.Sprintf("  %d passed, %d warning(s), %d failed  ", res.Passed, res.Warnings, res.Failed)
	if !res.Success {
		fmt.Println(style.ErrorBox.Render("✗" + summary))
		return fmt.Errorf("validation failed")
	}
	fmt.Println(style.SuccessBox.Render("✓" + summary))
	return nil
}

func printCheckRow(c model.ValidationCheck) {
	fmt.Printf("  %s %s %s\n", style.CheckDot(c.Status), style.Bold.Render(padRight(c.Name, 18)), c.Message)
	for key, val := range c.Details {
		fmt.Printf("      %s\n", style.DimText.Render(fmt.Sprintf("%s: %v", key, val)))
	}
}

func writeValidationReport(cfg *config.Config, res *model.ValidationResult) {
	if cfg.ReportDir == "" {
		return
	}
	r := report.New(nil, nil, res)
	r.Target = cfg.Target
	r.Environment = cfg.Environment
	r.Success = res.Success
	path, err := r.Write(cfg.ReportDir)
	if err != nil {
		fmt.Println(style.Warning.Render("  report not written: " + err.Error()))
		return
	}
	fmt.Println(style.DimText.Render("  report: " + path))
}

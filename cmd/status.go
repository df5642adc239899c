package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/manifest"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/provider"
	"github.com/srnarasim/dataprism-tooling/report"
	"github.com/srnarasim/dataprism-tooling/style"
)

var statusCmd = &cobra.Command{
	Use:   "status [url]",
	Short: "Show the state of a deployment",
	Long: `Reports what is currently published: the provider's view of the
target (branch, last deploy commit), the manifest served at the
deployment URL, and the last local report if one was written.`,
	Aliases: []string{"s"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	url := cfg.PagesURL()
	if len(args) == 1 {
		url = strings.TrimRight(args[0], "/")
	}
	if url == "" && cfg.Repository == "" {
		return fmt.Errorf("%w: nothing to inspect; pass a URL or set repository", model.ErrConfiguration)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Repository != "" {
		if err := printProviderStatus(ctx, cfg); err != nil {
			return err
		}
	}
	if url != "" {
		printRemoteManifest(ctx, cfg, url)
	}
	printLastReport(cfg)
	return nil
}

func printProviderStatus(ctx context.Context, cfg *config.Config) error {
	prov, err := provider.NewRegistry().Get(cfg.Target, cfg)
	if err != nil {
		return err
	}
	st, err := prov.Status(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(style.Bold.Render(st.Target))
	if st.Reachable {
		b.WriteString("  " + style.Good.Render("● reachable"))
	} else {
		b.WriteString("  " + style.Bad.Render("● unreachable"))
	}
	b.WriteString("\n\n")

	kv := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(style.Key.Render(k))
		b.WriteString(style.Val.Render(v))
		b.WriteString("\n")
	}
	kv("Repository", st.Repo)
	kv("Branch", st.Branch)
	kv("URL", st.URL)
	sha := st.CommitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	kv("Published", sha)
	kv("Environment", cfg.Environment)

	fmt.Println(b.String())
	return nil
}

// printRemoteManifest probes the live deployment for its manifest. A
// broken deployment is reported, not returned as an error; status is
// for looking, validate is for judging.
func printRemoteManifest(ctx context.Context, cfg *config.Config, url string) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/"+manifest.ManifestFile, nil)
	if err != nil {
		fmt.Printf("%s  %s\n", style.Bold.Render(url), style.Bad.Render("● invalid URL"))
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("%s  %s\n", style.Bold.Render(url), style.Bad.Render("● unreachable"))
		fmt.Println(style.DimText.Render("  " + err.Error()))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("%s  %s\n", style.Bold.Render(url), style.Bad.Render(fmt.Sprintf("● manifest: HTTP %d", resp.StatusCode)))
		return
	}
	var m model.AssetManifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&m); err != nil {
		fmt.Printf("%s  %s\n", style.Bold.Render(url), style.Bad.Render("● manifest unparsable"))
		return
	}

	var b strings.Builder
	b.WriteString(style.Bold.Render(url))
	b.WriteString("  " + style.Good.Render("● live"))
	b.WriteString("\n\n")

	kv := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(style.Key.Render(k))
		b.WriteString(style.Val.Render(v))
		b.WriteString("\n")
	}
	kv("Version", m.Version)
	kv("Build hash", m.BuildHash)
	kv("Assets", fmt.Sprintf("%d files, %s", len(m.Filenames()), style.Size(m.Metadata.TotalBundleSize)))
	if !m.Timestamp.IsZero() {
		kv("Built", age(m.Timestamp))
	}

	fmt.Println(b.String())
}

func printLastReport(cfg *config.Config) {
	if cfg.ReportDir == "" {
		return
	}
	r, _, err := report.Latest(cfg.ReportDir)
	if err != nil {
		return
	}

	dot := style.DotPassed
	if !r.Success {
		dot = style.DotFailed
	}
	id := r.DeploymentID
	if id == "" {
		id = "(validate run)"
	}
	fmt.Println(style.TableHeader.Render("  Last report"))
	fmt.Printf("  %s %s %s\n", dot, id, style.DimText.Render(age(r.Timestamp)))
	if r.Error != "" {
		fmt.Println(style.DimText.Render("    " + r.Error))
	}
	fmt.Println()
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/provider"
	"github.com/srnarasim/dataprism-tooling/style"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recent deployments on the target",
	Aliases: []string{"ls", "history"},
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 10, "maximum deployments to show")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prov, err := provider.NewRegistry().Get(cfg.Target, cfg)
	if err != nil {
		return err
	}

	records, err := prov.ListDeployments(ctx, listLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(style.DimText.Render("No deployments found. Nothing has been published yet."))
		return nil
	}

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN") + style.Subtitle.Render(fmt.Sprintf("  %d deployment(s)", len(records))))
	fmt.Println()

	header := fmt.Sprintf("  %-2s  %-30s %-9s %-9s %-18s %s", "", "DEPLOYMENT", "COMMIT", "AGE", "AUTHOR", "MESSAGE")
	fmt.Println(style.TableHeader.Render(header))

	for _, r := range records {
		dot := style.DotDim
		if r.Current {
			dot = style.DotPassed
		}

		id := r.ID
		if id == "" {
			id = "(manual commit)"
		}
		idCell := style.Bold.Render(padRight(id, 30))
		if r.ID == "" {
			idCell = style.DimText.Render(padRight(id, 30))
		}

		sha := r.CommitSHA
		if len(sha) > 7 {
			sha = sha[:7]
		}

		fmt.Printf("  %s  %s %s %s %s %s\n",
			dot,
			idCell,
			lipgloss.NewStyle().Foreground(style.Cyan).Render(padRight(sha, 9)),
			style.DimText.Render(padRight(age(r.Timestamp), 9)),
			padRight(r.Author, 18),
			style.DimText.Render(r.Message),
		)
	}
	fmt.Println()
	return nil
}

// age renders how long ago t was, coarsely.
func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

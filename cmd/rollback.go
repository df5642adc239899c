package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/pipeline"
	"github.com/srnarasim/dataprism-tooling/provider"
	"github.com/srnarasim/dataprism-tooling/style"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [deployment-id]",
	Short: "Revert the CDN to a previous deployment",
	Long: `Re-publishes an earlier deployment's content. Without an ID the most
recent deployment before the current one is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := provider.NewRegistry()

	deploymentID := ""
	if len(args) == 1 {
		deploymentID = args[0]
	} else {
		deploymentID, err = previousDeployment(ctx, reg, cfg)
		if err != nil {
			return err
		}
	}

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN ROLLBACK"))
	fmt.Printf("  %s%s\n\n", style.Key.Render("Deployment"), style.Val.Render(deploymentID))

	res, err := pipeline.New(reg).Rollback(ctx, cfg, deploymentID)
	if err != nil {
		if res != nil {
			for _, line := range res.Logs {
				fmt.Println(style.DimText.Render("  " + line))
			}
		}
		return err
	}

	b := fmt.Sprintf("✓ Rolled back to %s", deploymentID)
	if res.URL != "" {
		b += "\n  " + res.URL
	}
	fmt.Println(style.SuccessBox.Render(b))
	return nil
}

// previousDeployment finds the deployment to revert to: the newest
// history entry behind the current one that carries a deployment ID.
func previousDeployment(ctx context.Context, reg *provider.Registry, cfg *config.Config) (string, error) {
	prov, err := reg.Get(cfg.Target, cfg)
	if err != nil {
		return "", err
	}
	records, err := prov.ListDeployments(ctx, 20)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.Current || r.ID == "" {
			continue
		}
		return r.ID, nil
	}
	return "", fmt.Errorf("%w: no earlier deployment found in history", model.ErrNoPriorDeployment)
}

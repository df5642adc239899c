package cmd

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/style"
)

// Version and Commit are stamped at build time via -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		logo := lipgloss.NewStyle().
			Bold(true).
			Foreground(style.Primary).
			Render(`
  ┌┬┐┌─┐┌┬┐┌─┐┌─┐┬─┐┬┌─┐┌┬┐
   ││├─┤ │ ├─┤├─┘├┬┘│└─┐│││
  ─┴┘┴ ┴ ┴ ┴ ┴┴  ┴└─┴└─┘┴ ┴`)

		fmt.Println(logo)
		fmt.Println()
		fmt.Printf("  %s %s\n", style.Key.Render("Version"), style.Val.Render(Version))
		if Commit != "" {
			fmt.Printf("  %s %s\n", style.Key.Render("Commit"), style.Val.Render(Commit))
		}
		fmt.Printf("  %s %s\n", style.Key.Render("Runtime"), style.Val.Render(runtime.Version()))
		fmt.Println()
		fmt.Println(style.DimText.Render("  Analytics at the edge, verified."))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

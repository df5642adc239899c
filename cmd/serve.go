package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/preview"
	"github.com/srnarasim/dataprism-tooling/style"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [build-dir]",
	Short: "Preview a bundle locally with CDN-equivalent headers",
	Long: `Serves the bundle with the same cross-origin isolation, MIME and
caching headers the CDN is configured to send, so WASM streaming and
the validate battery can be exercised before deploying. Changed files
trigger a live reload in connected pages.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", "127.0.0.1:4173", "listen address")
	f.BoolVar(&serveWatch, "watch", true, "reload pages when the bundle changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cfg.BuildDir
	if len(args) == 1 {
		dir = args[0]
	}

	s, err := preview.New(preview.Options{Dir: dir, Addr: serveAddr, Watch: serveWatch})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println(style.Banner.Render("⚡ DATAPRISM CDN PREVIEW"))
	kv := func(k, v string) {
		fmt.Printf("  %s%s\n", style.Key.Render(k), style.Val.Render(v))
	}
	kv("Bundle", dir)
	kv("URL", s.URL())
	if serveWatch {
		kv("Live reload", "on")
	}
	fmt.Println()
	fmt.Println(style.DimText.Render("  validate it: dataprism-cdn validate " + s.URL()))
	fmt.Println(style.DimText.Render("  press ctrl+c to stop"))
	fmt.Println()

	return s.Run(ctx)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/srnarasim/dataprism-tooling/config"
	"github.com/srnarasim/dataprism-tooling/model"
	"github.com/srnarasim/dataprism-tooling/pipeline"
	"github.com/srnarasim/dataprism-tooling/provider"
	"github.com/srnarasim/dataprism-tooling/report"
	"github.com/srnarasim/dataprism-tooling/style"
)

var (
	deployDryRun     bool
	deployNoValidate bool
	deployStrict     bool
	deployVersion    string
	deployBaseURL    string
	deployAttempts   int
	deployReportDir  string
)

var deployCmd = &cobra.Command{
	Use:   "deploy [build-dir]",
	Short: "Deploy a built bundle to the configured CDN target",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	f := deployCmd.Flags()
	f.BoolVar(&deployDryRun, "dry-run", false, "scan and build the manifest without deploying")
	f.BoolVar(&deployNoValidate, "no-validate", false, "skip post-deploy validation")
	f.BoolVar(&deployStrict, "strict", false, "treat validation warnings as failures")
	f.StringVar(&deployVersion, "version", "", "asset version recorded in the manifest")
	f.StringVar(&deployBaseURL, "base-url", "", "public URL override for the manifest and validation")
	f.IntVar(&deployAttempts, "attempts", 0, "connection retry attempts")
	f.StringVar(&deployReportDir, "report-dir", "", "write a JSON deployment report here")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.BuildDir = args[0]
	}
	cfg.DryRun = deployDryRun
	if deployNoValidate {
		cfg.Validate = false
	}
	if deployStrict {
		cfg.Strict = true
	}
	if f := cmd.Flag("version"); f.Changed {
		cfg.Version = deployVersion
	}
	if f := cmd.Flag("base-url"); f.Changed {
		cfg.BaseURL = deployBaseURL
	}
	if deployAttempts > 0 {
		cfg.RetryAttempts = deployAttempts
	}
	if f := cmd.Flag("report-dir"); f.Changed {
		cfg.ReportDir = deployReportDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	o := pipeline.New(provider.NewRegistry())

	var outcome *pipeline.Outcome
	var deployErr error
	if flagPlain || cfg.DryRun || !isatty.IsTerminal(os.Stdout.Fd()) {
		outcome, deployErr = runDeployPlain(ctx, o, cfg)
	} else {
		outcome, deployErr = runDeployTUI(ctx, o, cfg)
	}

	if outcome != nil {
		printOutcome(cfg, outcome)
		writeReport(cfg, outcome)
	}
	if deployErr != nil {
		return deployErr
	}
	if outcome.ValidationErr != nil {
		return fmt.Errorf("validation could not run: %w", outcome.ValidationErr)
	}
	if outcome.Validation != nil && !outcome.Validation.Success {
		return fmt.Errorf("validation failed: %d check(s) failed, %d warning(s)",
			outcome.Validation.Failed, outcome.Validation.Warnings)
	}
	return nil
}

// --- Plain mode ---

func runDeployPlain(ctx context.Context, o *pipeline.Orchestrator, cfg *config.Config) (*pipeline.Outcome, error) {
	title := "DATAPRISM CDN DEPLOY"
	if cfg.DryRun {
		title = "DATAPRISM CDN DEPLOY (dry run)"
	}
	fmt.Println(style.Banner.Render("⚡ " + title))
	fmt.Printf("  %s%s  %s%s\n\n",
		style.Key.Render("Target"), style.TargetBadge.Render(cfg.Target),
		style.Key.Render("Environment"), style.EnvBadge.Render(cfg.Environment))

	events := make(chan pipeline.Event, 64)
	o.Events = events
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range events {
			icon, s := eventStyle(evt.Status)
			line := fmt.Sprintf("  %s %s", s.Render(icon), padRight(evt.Step, 12))
			if evt.Message != "" {
				line += style.DimText.Render(evt.Message)
			}
			if evt.Error != "" {
				line += style.StepFailed.Render(evt.Error)
			}
			fmt.Println(line)
		}
	}()

	outcome, err := o.Deploy(ctx, cfg)
	close(events)
	<-done
	return outcome, err
}

func eventStyle(status string) (string, lipgloss.Style) {
	switch status {
	case pipeline.StatusRunning:
		return "▶", style.StepRunning
	case pipeline.StatusComplete:
		return "✓", style.StepDone
	case pipeline.StatusFailed:
		return "✗", style.StepFailed
	case pipeline.StatusSkipped:
		return "·", style.StepSkipped
	}
	return "·", style.DimText
}

// --- TUI mode ---

type pipelineDone struct {
	outcome *pipeline.Outcome
	err     error
}

type stepState struct {
	name   string
	status string // "pending" | running | complete | failed | skipped
	detail string
}

type deployModel struct {
	cfg       *config.Config
	spinner   spinner.Model
	steps     []stepState
	status    string // "deploying" | "completed" | "failed"
	errMsg    string
	outcome   *pipeline.Outcome
	err       error
	startTime time.Time
	events    chan pipeline.Event
	done      chan pipelineDone
	cancel    context.CancelFunc
}

func newDeployModel(cfg *config.Config, events chan pipeline.Event, done chan pipelineDone, cancel context.CancelFunc) deployModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(style.Primary)

	steps := make([]stepState, len(pipeline.DeploySteps))
	for i, name := range pipeline.DeploySteps {
		steps[i] = stepState{name: name, status: "pending"}
	}

	return deployModel{
		cfg:       cfg,
		spinner:   s,
		steps:     steps,
		status:    "deploying",
		startTime: time.Now(),
		events:    events,
		done:      done,
		cancel:    cancel,
	}
}

func runDeployTUI(ctx context.Context, o *pipeline.Orchestrator, cfg *config.Config) (*pipeline.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, 64)
	done := make(chan pipelineDone, 1)
	o.Events = events

	go func() {
		outcome, err := o.Deploy(ctx, cfg)
		close(events)
		done <- pipelineDone{outcome: outcome, err: err}
	}()

	p := tea.NewProgram(newDeployModel(cfg, events, done, cancel))
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	dm := finalModel.(deployModel)
	if dm.outcome == nil {
		// Quit before the pipeline finished; the cancel is already in
		// flight, collect the result so nothing leaks.
		res := <-done
		return res.outcome, res.err
	}
	return dm.outcome, dm.err
}

func (m deployModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForPipelineEvent(m.events),
		waitForPipelineDone(m.done),
	)
}

func (m deployModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pipeline.Event:
		for i := range m.steps {
			if m.steps[i].name == msg.Step {
				m.steps[i].status = msg.Status
				switch {
				case msg.Error != "":
					m.steps[i].detail = msg.Error
				case msg.Message != "":
					m.steps[i].detail = msg.Message
				}
				break
			}
		}
		return m, waitForPipelineEvent(m.events)

	case pipelineDone:
		m.outcome = msg.outcome
		m.err = msg.err
		if msg.err != nil {
			m.status = "failed"
			m.errMsg = msg.err.Error()
		} else {
			m.status = "completed"
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m deployModel) View() string {
	var b strings.Builder

	b.WriteString(style.Banner.Render("⚡ DATAPRISM CDN DEPLOY"))
	b.WriteString("\n")

	b.WriteString(style.Key.Render("Target"))
	b.WriteString(style.TargetBadge.Render(m.cfg.Target))
	b.WriteString("\n")
	b.WriteString(style.Key.Render("Environment"))
	b.WriteString(style.EnvBadge.Render(m.cfg.Environment))
	b.WriteString("\n")
	b.WriteString(style.Key.Render("Bundle"))
	b.WriteString(style.Val.Render(m.cfg.BuildDir))
	b.WriteString("\n\n")

	stepIcons := map[string]string{
		pipeline.StepConfigure: "⚙️",
		pipeline.StepScan:      "🔍",
		pipeline.StepManifest:  "📦",
		pipeline.StepConnect:   "🔌",
		pipeline.StepDeploy:    "🚀",
		pipeline.StepValidate:  "🧪",
	}

	for _, step := range m.steps {
		icon := stepIcons[step.name]
		name := padRight(step.name, 12)

		switch step.status {
		case "pending":
			b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepPending.Render(name), style.DimText.Render("waiting")))
		case pipeline.StatusRunning:
			b.WriteString(fmt.Sprintf("  %s %s %s %s\n", icon, style.StepRunning.Render(name), m.spinner.View(), style.StepRunning.Render("running")))
		case pipeline.StatusComplete:
			detail := "✓ done"
			if step.detail != "" {
				detail = "✓ " + step.detail
			}
			b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepDone.Render(name), style.StepDone.Render(detail)))
		case pipeline.StatusFailed:
			b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepFailed.Render(name), style.StepFailed.Render("✗ "+step.detail)))
		case pipeline.StatusSkipped:
			b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepSkipped.Render(name), style.DimText.Render("skipped: "+step.detail)))
		}
	}

	b.WriteString("\n")

	elapsed := time.Since(m.startTime).Round(time.Second)

	switch m.status {
	case "deploying":
		b.WriteString(m.spinner.View() + style.DimText.Render(fmt.Sprintf(" Pipeline running... (%s)", elapsed)))
	case "completed":
		b.WriteString(style.SuccessBox.Render(fmt.Sprintf("✓ Deploy completed in %s", elapsed)))
	case "failed":
		msg := "Deploy failed"
		if m.errMsg != "" {
			msg = "Deploy failed: " + m.errMsg
		}
		b.WriteString(style.ErrorBox.Render("✗ " + msg))
	}

	b.WriteString("\n")
	return b.String()
}

func waitForPipelineEvent(ch chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return evt
	}
}

func waitForPipelineDone(ch chan pipelineDone) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// --- Shared output ---

// printOutcome summarizes the run after the step display is done.
func printOutcome(cfg *config.Config, outcome *pipeline.Outcome) {
	d := outcome.Deployment
	if d == nil {
		return
	}

	if cfg.DryRun {
		for _, line := range d.Logs {
			fmt.Println(style.DimText.Render("  " + line))
		}
		for _, w := range outcome.Warnings {
			fmt.Printf("  %s %s\n", style.DotWarning, style.Warning.Render(w.String()))
		}
		fmt.Println(style.SuccessBox.Render("✓ Dry run complete, nothing deployed"))
		return
	}

	for _, w := range outcome.Warnings {
		fmt.Printf("  %s %s\n", style.DotWarning, style.Warning.Render(w.String()))
	}

	if d.Success {
		var b strings.Builder
		fmt.Fprintf(&b, "✓ Deployed %s\n", d.DeploymentID)
		if d.URL != "" {
			fmt.Fprintf(&b, "  %s", d.URL)
		}
		if d.Metrics != nil {
			fmt.Fprintf(&b, "\n  %d files, %s", d.Metrics.TotalFiles, style.Size(d.Metrics.TotalSize))
		}
		fmt.Println(style.SuccessBox.Render(b.String()))
	}

	if v := outcome.Validation; v != nil {
		fmt.Println()
		fmt.Printf("  %s %d passed  %s %d warnings  %s %d failed\n",
			style.DotPassed, v.Passed,
			style.DotWarning, v.Warnings,
			style.DotFailed, v.Failed)
		for _, c := range v.Checks {
			if c.Status == model.CheckPassed {
				continue
			}
			fmt.Printf("    %s %s %s\n", style.CheckDot(c.Status), padRight(c.Name, 18), c.Message)
		}
	}
}

// writeReport persists the run when a report dir is configured.
func writeReport(cfg *config.Config, outcome *pipeline.Outcome) {
	if cfg.ReportDir == "" {
		return
	}
	r := report.New(outcome.Deployment, outcome.Manifest, outcome.Validation)
	r.Target = cfg.Target
	r.Environment = cfg.Environment
	// The report's Success answers "did the run check out", so a
	// validation failure sinks it even though the push went through.
	if outcome.ValidationErr != nil {
		r.Success = false
		if r.Error == "" {
			r.Error = outcome.ValidationErr.Error()
		}
	} else if outcome.Validation != nil && !outcome.Validation.Success {
		r.Success = false
	}
	path, err := r.Write(cfg.ReportDir)
	if err != nil {
		fmt.Println(style.Warning.Render("  report not written: " + err.Error()))
		return
	}
	fmt.Println(style.DimText.Render("  report: " + path))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/TravelModellingGroup/emmebridge/internal/batch"
	"github.com/TravelModellingGroup/emmebridge/internal/bridge"
	"github.com/TravelModellingGroup/emmebridge/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <batch.yaml>",
	Short: "Run a batch of modeller tools",
	Long: `Run the operations listed in a batch file through one modeller session.

The batch stops at the first error unless continue_on_error is set in the
file or --continue-on-error is given. Losing the modeller always stops it.

With --watch the batch runs again each time the file is saved. A new
modeller session is started when the previous one was lost.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	runWatch           bool
	runContinueOnError bool
	runPlain           bool
)

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run the batch when the file changes")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "keep going after a tool reports an error")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "report progress as plain lines even on a terminal")
	rootCmd.AddCommand(runCmd)
}

// batchRunner runs batch files through a session it reopens on demand.
type batchRunner struct {
	app     *app
	fs      afero.Fs
	out     io.Writer
	rep     tui.Reporter
	session *bridge.Session
}

func (r *batchRunner) close() {
	if r.session != nil {
		_ = r.session.Close()
	}
}

func (r *batchRunner) run(ctx context.Context, path string) error {
	f, err := batch.Load(r.fs, path)
	if err != nil {
		return err
	}
	if runContinueOnError {
		f.ContinueOnError = true
	}

	if r.session == nil || r.session.State() != bridge.StateReady {
		r.close()
		s, err := r.app.openSession(ctx, r.rep)
		if err != nil {
			r.session = nil
			return err
		}
		r.session = s
	}

	total := len(f.Steps)
	report, err := batch.Run(ctx, sessionInvoker{ctx: ctx, session: r.session}, f, batch.Hooks{
		BeforeStep: func(i int, step batch.Step) { r.rep.Step(i, total, step.Operation) },
		Progress:   func(_ int, fraction float32) { r.rep.Progress(fraction) },
		AfterStep:  func(res batch.StepResult) { r.rep.StepDone(res.Err) },
	})

	for _, res := range report.Results {
		if res.Err == nil && res.Result.Value != nil {
			fmt.Fprintf(r.out, "%s\t%s\n", res.Step.Operation, *res.Result.Value)
		}
	}
	r.app.logger.Info("batch finished",
		"path", path,
		"ran", len(report.Results),
		"failed", report.Failed(),
		"skipped", report.Skipped)

	if err == nil && report.Failed() > 0 {
		err = fmt.Errorf("%d of %d operations failed", report.Failed(), total)
	}
	return err
}

func runBatch(cmd *cobra.Command, args []string) error {
	path := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := a.serveMetrics(ctx); err != nil {
		return err
	}

	r := &batchRunner{
		app: a,
		fs:  afero.NewOsFs(),
		out: cmd.OutOrStdout(),
		rep: newReporter(cmd, path, runPlain),
	}
	defer func() { _ = r.rep.Close() }()
	defer r.close()

	err = r.run(ctx, path)
	if !runWatch {
		if err != nil {
			return a.describe(err)
		}
		return nil
	}

	if err != nil {
		a.logger.Warn("batch failed", "path", path, "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "batch failed: %v\n", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s for changes\n", path)
	return batch.Watch(ctx, path, batch.DefaultDebounce, a.logger, func() {
		if err := r.run(ctx, path); err != nil {
			a.logger.Warn("batch failed", "path", path, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "batch failed: %v\n", err)
		}
	})
}

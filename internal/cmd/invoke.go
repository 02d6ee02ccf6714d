package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TravelModellingGroup/emmebridge/internal/bridge"
	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <operation>",
	Short: "Run one modeller tool",
	Long: `Run one modeller tool and print the value it returns.

The operation is the tool's namespace, e.g. tmg2.Assignment.RoadAssignment.
The payload is passed to the tool unchanged; most tools expect JSON.

Progress and modeller messages are written to stderr, the returned value
to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

var (
	invokePayload     string
	invokePayloadFile string
	invokeLogbook     string
	invokePlain       bool
)

func init() {
	invokeCmd.Flags().StringVarP(&invokePayload, "payload", "p", "", "payload passed to the tool")
	invokeCmd.Flags().StringVarP(&invokePayloadFile, "payload-file", "f", "", "read the payload from a file (- for stdin)")
	invokeCmd.Flags().StringVarP(&invokeLogbook, "logbook", "l", "", "logbook level: none, standard or debug (default from config)")
	invokeCmd.Flags().BoolVar(&invokePlain, "plain", false, "report progress as plain lines even on a terminal")
	invokeCmd.MarkFlagsMutuallyExclusive("payload", "payload-file")
	rootCmd.AddCommand(invokeCmd)
}

func readPayload(cmd *cobra.Command) ([]byte, error) {
	switch invokePayloadFile {
	case "":
		return []byte(invokePayload), nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to read payload from stdin")
		}
		return data, nil
	default:
		data, err := os.ReadFile(invokePayloadFile)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to read payload file")
		}
		return data, nil
	}
}

func runInvoke(cmd *cobra.Command, args []string) error {
	operation := args[0]

	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	level, err := a.logbookLevel(invokeLogbook)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := a.serveMetrics(ctx); err != nil {
		return err
	}

	rep := newReporter(cmd, "", invokePlain)
	res, err := func() (bridge.Result, error) {
		s, err := a.openSession(ctx, rep)
		if err != nil {
			return bridge.Result{}, err
		}
		defer s.Close()

		rep.Step(0, 1, operation)
		res, err := withFailTimeout(ctx, s, func() (bridge.Result, error) {
			return s.Invoke(operation, payload, level, rep.Progress)
		})
		rep.StepDone(err)
		return res, err
	}()
	_ = rep.Close()
	if err != nil {
		return a.describe(err)
	}

	if res.Value != nil {
		fmt.Fprintln(cmd.OutOrStdout(), *res.Value)
	}
	return nil
}

// describe logs err at its severity and adds a hint when the user can act
// on it.
func (a *app) describe(err error) error {
	switch apperrors.GetSeverity(err) {
	case apperrors.SeverityCritical, apperrors.SeverityError:
		a.logger.Error("command failed", "error", err)
	case apperrors.SeverityWarning:
		a.logger.Warn("command failed", "error", err)
	default:
		a.logger.Info("command failed", "error", err)
	}

	if apperrors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	if !apperrors.IsUserFacing(err) {
		return err
	}

	var cfgErr *apperrors.ConfigurationError
	switch {
	case apperrors.As(err, &cfgErr):
		// Already names the setting or file at fault.
		return err
	case apperrors.Is(err, apperrors.ErrToolNotFound):
		return hint(err, "Check the namespace with 'emmebridge check-tool <namespace>'")
	case apperrors.IsConstructionError(err) && apperrors.IsRetryable(err):
		return hint(err, "The modeller may still be starting; try again or raise channel.connect_timeout")
	case apperrors.IsConstructionError(err):
		return hint(err, "Check the peer settings with 'emmebridge config show'")
	case apperrors.IsFatal(err):
		return hint(err, "The modeller session was lost; see the bridge log for its output")
	case apperrors.IsRetryable(err):
		return hint(err, "The tool rejected the request; correct the payload and run it again")
	default:
		return err
	}
}

func hint(err error, text string) error {
	return fmt.Errorf("%w\n%s", err, text)
}

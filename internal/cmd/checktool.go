package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var checkToolCmd = &cobra.Command{
	Use:   "check-tool <namespace>",
	Short: "Check whether the modeller has a tool",
	Long: `Ask the modeller whether a tool with the given namespace exists.
Prints true or false.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckTool,
}

func init() {
	rootCmd.AddCommand(checkToolCmd)
}

func runCheckTool(cmd *cobra.Command, args []string) error {
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

	s, err := a.openSession(ctx, cmd.ErrOrStderr())
	if err != nil {
		return a.describe(err)
	}
	defer s.Close()

	exists, err := withFailTimeout(ctx, s, func() (bool, error) {
		return s.CheckToolExists(args[0])
	})
	if err != nil {
		return a.describe(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), exists)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TravelModellingGroup/emmebridge/internal/logging"
	"github.com/TravelModellingGroup/emmebridge/internal/peer/fakepeer"
)

var fakePeerCmd = &cobra.Command{
	Use:   "fake-peer [script project initials performance] [channel]",
	Short: "Serve demo tools in place of a modeller",
	Long: `Connect to a waiting bridge and serve a set of demo tools, for trying
emmebridge without EMME.

The channel is taken from --channel, or from the last argument so the
command can be configured as the peer executable itself:

  peer:
    executable: /usr/local/bin/emmebridge
    interpreter_args: [fake-peer]

Or attach by hand from two terminals:

  emmebridge invoke --attach --channel demo tmg.demo.echo -p hi
  emmebridge fake-peer --channel demo

Available tools:
` + demoToolList(),
	Args: cobra.ArbitraryArgs,
	RunE: runFakePeer,
}

var fakePeerWait time.Duration

func init() {
	fakePeerCmd.Flags().DurationVar(&fakePeerWait, "wait", 30*time.Second, "how long to retry connecting to the bridge")
	rootCmd.AddCommand(fakePeerCmd)
}

func demoToolList() string {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(fakepeer.DemoTools())) {
		b.WriteString("  " + name + "\n")
	}
	return b.String()
}

func runFakePeer(cmd *cobra.Command, args []string) error {
	name := viper.GetString("channel.name")
	if len(args) > 0 {
		name = args[len(args)-1]
	}
	if name == "" {
		return fmt.Errorf("a channel name is required: pass --channel or a trailing argument")
	}
	dir := viper.GetString("channel.dir")

	// The bridge's own log settings apply; a launched peer's stderr ends up
	// in the bridge log.
	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), viper.GetString("logging.level"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p, err := dialBridge(ctx, name, dir, fakePeerWait, fakepeer.WithTools(fakepeer.DemoTools()), fakepeer.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("connected to bridge", "channel", name)

	if err := p.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("bridge session ended", "channel", name)
	return nil
}

// dialBridge retries until the bridge listens on the channel or wait passes.
func dialBridge(ctx context.Context, name, dir string, wait time.Duration, opts ...fakepeer.Option) (*fakepeer.Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		p, err := fakepeer.Dial(ctx, name, dir, opts...)
		if err == nil {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no bridge listening on channel %q: %w", name, err)
		case <-ticker.C:
		}
	}
}

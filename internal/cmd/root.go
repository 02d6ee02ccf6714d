package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TravelModellingGroup/emmebridge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "emmebridge",
	Short: "Run EMME modeller tools from the command line",
	Long: `emmebridge launches (or attaches to) an EMME modeller process and runs
modeller tools through the bridge protocol, reporting progress and
messages as the tools run.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/emmebridge/config.yaml)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-dir", "", "write bridge.log to this directory instead of stderr")
	flags.Bool("attach", false, "wait for an externally started modeller instead of launching one")
	flags.String("channel", "", "channel name (generated when empty)")
	flags.String("channel-dir", "", "directory for the channel socket (non-Windows)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.dir", flags.Lookup("log-dir"))
	_ = viper.BindPFlag("peer.attach", flags.Lookup("attach"))
	_ = viper.BindPFlag("channel.name", flags.Lookup("channel"))
	_ = viper.BindPFlag("channel.dir", flags.Lookup("channel-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g. EMMEBRIDGE_PEER_EXECUTABLE for peer.executable
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

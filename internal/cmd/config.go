package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/TravelModellingGroup/emmebridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify emmebridge configuration",
	Long: `View or modify emmebridge configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  emmebridge config set peer.executable "C:\Program Files\INRO\Emme\Python\python.exe"
  emmebridge config set session.fail_timeout 30m
  emmebridge config set logging.level debug

Valid keys:
  peer.executable          - Interpreter that runs the bridge script
  peer.script              - Bridge script (.py)
  peer.project_file        - EMME project file
  peer.user_initials       - Initials recorded in the logbook
  peer.performance_mode    - Time every tool run (true/false)
  peer.working_dir         - Modeller working directory
  peer.shutdown_grace      - Time the modeller may take to exit (e.g. 5s)
  channel.dir              - Directory for channel sockets
  channel.connect_timeout  - Wait for the modeller to connect (e.g. 2m)
  session.fail_timeout     - Give up on a single tool after this long (0 = never)
  session.logbook_level    - Options: none, standard, debug
  session.max_string_mb    - Largest string accepted from the modeller
  logging.level            - Options: debug, info, warn, error
  logging.dir              - Directory for bridge.log (empty = stderr)
  metrics.addr             - Prometheus listen address (empty = off)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/emmebridge/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps each key accepted by config set to its value type.
var settableKeys = map[string]string{
	"peer.executable":         "string",
	"peer.script":             "string",
	"peer.project_file":       "string",
	"peer.user_initials":      "string",
	"peer.performance_mode":   "bool",
	"peer.working_dir":        "string",
	"peer.shutdown_grace":     "duration",
	"channel.dir":             "string",
	"channel.connect_timeout": "duration",
	"session.fail_timeout":    "duration",
	"session.logbook_level":   "logbook",
	"session.max_string_mb":   "int",
	"logging.level":           "level",
	"logging.dir":             "string",
	"metrics.addr":            "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseConfigValue checks value against the type of key.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'emmebridge config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 30s or 5m", key)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return d.String(), nil
	case "logbook":
		if !slices.Contains(config.ValidLogbookLevels(), strings.ToLower(value)) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogbookLevels(), ", "))
		}
		return strings.ToLower(value), nil
	case "level":
		if !slices.Contains(config.ValidLogLevels(), strings.ToLower(value)) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]

	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)

	return nil
}

const configTemplate = `# emmebridge configuration

# How to start the EMME modeller
peer:
  # Python interpreter shipped with EMME
  executable: ""
  # Extra interpreter arguments placed before the script
  interpreter_args: []
  # Bridge script run inside the modeller
  script: ""
  # EMME project (.emp) opened by the modeller
  project_file: ""
  # Initials recorded in the modeller logbook
  user_initials: TMG
  # Time every tool run
  performance_mode: false
  # Working directory (default: the script's directory)
  working_dir: ""
  # Wait for a modeller started by hand instead of launching one
  attach: false
  # Time the modeller may take to exit before it is killed
  shutdown_grace: 5s

# Transport between emmebridge and the modeller
channel:
  # Fixed channel name (generated when empty; required with peer.attach)
  name: ""
  # Directory for the socket on Linux and macOS (default: temp dir)
  dir: ""
  # How long to wait for the modeller to connect
  connect_timeout: 2m

# Tool runs
session:
  # Give up on a single tool after this long (0 = never)
  fail_timeout: 0s
  # Logbook level: none, standard or debug
  logbook_level: standard
  # Largest string accepted from the modeller, in MB
  max_string_mb: 256

# Debug logging
logging:
  # debug, info, warn or error
  level: warn
  # Directory for bridge.log (empty logs to stderr)
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false

# Prometheus endpoint
metrics:
  # e.g. 127.0.0.1:9464 (empty disables)
  addr: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'emmebridge config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Set peer.executable, peer.script and peer.project_file before running tools.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_PEER_EXECUTABLE)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}

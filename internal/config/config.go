package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// EMMEBRIDGE_PEER_EXECUTABLE or EMMEBRIDGE_SESSION_FAIL_TIMEOUT.
const EnvPrefix = "EMMEBRIDGE"

// Config represents the complete emmebridge configuration
type Config struct {
	Peer    PeerConfig    `mapstructure:"peer"`
	Channel ChannelConfig `mapstructure:"channel"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// PeerConfig describes how to start the modeller peer
type PeerConfig struct {
	// Executable is the interpreter that runs the bridge script
	// (typically the Python shipped with EMME)
	Executable string `mapstructure:"executable"`
	// InterpreterArgs are passed to Executable before the script, e.g. "-u".
	// A comma-separated string is accepted from env vars.
	InterpreterArgs []string `mapstructure:"interpreter_args"`
	// Script is the peer-side bridge script (a .py file)
	Script string `mapstructure:"script"`
	// ProjectFile is the EMME project the peer opens
	ProjectFile string `mapstructure:"project_file"`
	// UserInitials are recorded by the modeller in its logbook
	UserInitials string `mapstructure:"user_initials"`
	// PerformanceMode makes the peer time every tool run
	PerformanceMode bool `mapstructure:"performance_mode"`
	// WorkingDir is the peer's working directory (default: the script's directory)
	WorkingDir string `mapstructure:"working_dir"`
	// Attach skips launching; an externally started peer connects to channel.name
	Attach bool `mapstructure:"attach"`
	// ShutdownGrace is how long a launched peer may take to exit after
	// Termination before it is killed
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// ChannelConfig controls the transport endpoint
type ChannelConfig struct {
	// Name is the channel name; generated per session when empty
	Name string `mapstructure:"name"`
	// Dir holds Unix sockets on non-Windows platforms (default: system temp dir)
	Dir string `mapstructure:"dir"`
	// ConnectTimeout bounds the wait for the peer to connect (0 uses the default)
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// SessionConfig controls request handling
type SessionConfig struct {
	// FailTimeout is a deadline hint callers may apply around a single
	// invocation (0 = none). The session itself never cancels a call.
	FailTimeout time.Duration `mapstructure:"fail_timeout"`
	// LogbookLevel is the default logbook level: "none", "standard" or "debug"
	LogbookLevel string `mapstructure:"logbook_level"`
	// MaxStringMB caps any single string decoded from the peer
	MaxStringMB int `mapstructure:"max_string_mb"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum level written: "debug", "info", "warn" or "error"
	Level string `mapstructure:"level"`
	// Dir is where bridge.log is written; empty logs to stderr
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Peer: PeerConfig{
			UserInitials:  "TMG",
			ShutdownGrace: 5 * time.Second,
		},
		Channel: ChannelConfig{
			ConnectTimeout: 2 * time.Minute,
		},
		Session: SessionConfig{
			LogbookLevel: "standard",
			MaxStringMB:  256,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// MaxStringBytes returns MaxStringMB in bytes.
func (c *SessionConfig) MaxStringBytes() uint32 {
	return uint32(c.MaxStringMB) << 20
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Peer defaults
	v.SetDefault("peer.executable", defaults.Peer.Executable)
	v.SetDefault("peer.interpreter_args", defaults.Peer.InterpreterArgs)
	v.SetDefault("peer.script", defaults.Peer.Script)
	v.SetDefault("peer.project_file", defaults.Peer.ProjectFile)
	v.SetDefault("peer.user_initials", defaults.Peer.UserInitials)
	v.SetDefault("peer.performance_mode", defaults.Peer.PerformanceMode)
	v.SetDefault("peer.working_dir", defaults.Peer.WorkingDir)
	v.SetDefault("peer.attach", defaults.Peer.Attach)
	v.SetDefault("peer.shutdown_grace", defaults.Peer.ShutdownGrace)

	// Channel defaults
	v.SetDefault("channel.name", defaults.Channel.Name)
	v.SetDefault("channel.dir", defaults.Channel.Dir)
	v.SetDefault("channel.connect_timeout", defaults.Channel.ConnectTimeout)

	// Session defaults
	v.SetDefault("session.fail_timeout", defaults.Session.FailTimeout)
	v.SetDefault("session.logbook_level", defaults.Session.LogbookLevel)
	v.SetDefault("session.max_string_mb", defaults.Session.MaxStringMB)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it. Durations may
// be written as Go duration strings ("90s", "2m").
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "emmebridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".emmebridge"
	}
	return filepath.Join(home, ".config", "emmebridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

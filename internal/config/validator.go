package config

import (
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.logbook_level")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogbookLevels returns the list of valid logbook levels
func ValidLogbookLevels() []string {
	return []string{"none", "standard", "debug"}
}

// maxStringMB keeps decoded lengths inside uint32.
const maxStringMB = 4095

// Validate checks the Config for invalid values and returns all validation
// errors found. Presence of the peer artifacts is checked when a session is
// constructed, not here, so commands that never launch a peer still load.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePeer()...)
	errors = append(errors, c.validateChannel()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

func (c *Config) validatePeer() []ValidationError {
	var errors []ValidationError

	if c.Peer.Script != "" && !strings.EqualFold(filepath.Ext(c.Peer.Script), ".py") {
		errors = append(errors, ValidationError{
			Field:   "peer.script",
			Value:   c.Peer.Script,
			Message: "must be a .py file",
		})
	}

	if strings.ContainsAny(c.Peer.UserInitials, " \t\r\n") {
		errors = append(errors, ValidationError{
			Field:   "peer.user_initials",
			Value:   c.Peer.UserInitials,
			Message: "must not contain whitespace",
		})
	}

	if c.Peer.ShutdownGrace < 0 {
		errors = append(errors, ValidationError{
			Field:   "peer.shutdown_grace",
			Value:   c.Peer.ShutdownGrace,
			Message: "must be non-negative",
		})
	}

	if c.Peer.Attach && c.Channel.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "channel.name",
			Value:   c.Channel.Name,
			Message: "is required when peer.attach is set",
		})
	}

	return errors
}

func (c *Config) validateChannel() []ValidationError {
	var errors []ValidationError

	if strings.ContainsAny(c.Channel.Name, `/\`) {
		errors = append(errors, ValidationError{
			Field:   "channel.name",
			Value:   c.Channel.Name,
			Message: "must not contain path separators",
		})
	}

	if c.Channel.ConnectTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "channel.connect_timeout",
			Value:   c.Channel.ConnectTimeout,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.FailTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.fail_timeout",
			Value:   c.Session.FailTimeout,
			Message: "must be non-negative",
		})
	}

	if !slices.Contains(ValidLogbookLevels(), strings.ToLower(c.Session.LogbookLevel)) {
		errors = append(errors, ValidationError{
			Field:   "session.logbook_level",
			Value:   c.Session.LogbookLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogbookLevels(), ", ")),
		})
	}

	if c.Session.MaxStringMB <= 0 || c.Session.MaxStringMB > maxStringMB {
		errors = append(errors, ValidationError{
			Field:   "session.max_string_mb",
			Value:   c.Session.MaxStringMB,
			Message: fmt.Sprintf("must be between 1 and %d", maxStringMB),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	if c.Metrics.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		return []ValidationError{{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be host:port",
		}}
	}
	return nil
}

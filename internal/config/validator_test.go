package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := one.Error(); got != "a: bad (got: 1)" {
		t.Errorf("single Error() = %q", got)
	}

	two := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: "x", Message: "worse"},
	}
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "2. b: worse") {
		t.Errorf("multi Error() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"script extension", func(c *Config) { c.Peer.Script = "bridge.exe" }, "peer.script"},
		{"initials whitespace", func(c *Config) { c.Peer.UserInitials = "J D" }, "peer.user_initials"},
		{"negative grace", func(c *Config) { c.Peer.ShutdownGrace = -time.Second }, "peer.shutdown_grace"},
		{"attach without channel", func(c *Config) { c.Peer.Attach = true }, "channel.name"},
		{"channel separator", func(c *Config) { c.Channel.Name = "a/b" }, "channel.name"},
		{"negative connect timeout", func(c *Config) { c.Channel.ConnectTimeout = -1 }, "channel.connect_timeout"},
		{"negative fail timeout", func(c *Config) { c.Session.FailTimeout = -1 }, "session.fail_timeout"},
		{"logbook level", func(c *Config) { c.Session.LogbookLevel = "verbose" }, "session.logbook_level"},
		{"max string zero", func(c *Config) { c.Session.MaxStringMB = 0 }, "session.max_string_mb"},
		{"max string too large", func(c *Config) { c.Session.MaxStringMB = 5000 }, "session.max_string_mb"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log size", func(c *Config) { c.Logging.MaxSizeMB = 2000 }, "logging.max_size_mb"},
		{"log backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"metrics addr", func(c *Config) { c.Metrics.Addr = "9464" }, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestValidate_AcceptsVariants(t *testing.T) {
	cfg := Default()
	cfg.Peer.Script = `C:\XTMF\ModellerBridge.PY`
	cfg.Peer.Attach = true
	cfg.Channel.Name = "emmebridge-fixed"
	cfg.Session.LogbookLevel = "DEBUG"
	cfg.Logging.Level = "WARN"
	cfg.Metrics.Addr = ":9464"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", ValidationErrors(errs))
	}
}

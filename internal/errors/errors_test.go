package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Construction Error Tests
// -----------------------------------------------------------------------------

func TestConfigurationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigurationError
		want string
	}{
		{
			name: "basic error",
			err:  NewConfigurationError("missing interpreter", nil),
			want: "configuration error: missing interpreter",
		},
		{
			name: "with path and cause",
			err:  NewConfigurationError("bridge script not found", io.EOF).WithPath("/opt/ModellerBridge.py"),
			want: "configuration error [path=/opt/ModellerBridge.py]: bridge script not found: EOF",
		},
		{
			name: "with field and path",
			err:  NewConfigurationError("not a file", nil).WithField("peer.script").WithPath("/tmp"),
			want: "configuration error [field=peer.script, path=/tmp]: not a file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructionErrors_Is(t *testing.T) {
	cfgErr := NewConfigurationError("x", nil)
	if !Is(cfgErr, ErrInvalidConfiguration) || !Is(cfgErr, &ConfigurationError{}) {
		t.Error("ConfigurationError should match ErrInvalidConfiguration and its type")
	}
	if IsFatal(cfgErr) {
		t.Error("ConfigurationError should not be fatal to a session")
	}

	launchErr := NewLaunchError("start modeller", io.ErrClosedPipe).WithExecutable("python.exe").WithPID(42)
	if !Is(launchErr, ErrLaunchFailed) || !Is(launchErr, io.ErrClosedPipe) {
		t.Error("LaunchError should match ErrLaunchFailed and its cause")
	}
	if got, want := launchErr.Error(), "launch error [executable=python.exe, pid=42]: start modeller: io: read/write on closed pipe"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	hsErr := NewHandshakeError("expected Start", nil).WithChannel("emme-1").WithReceived("RunComplete")
	if !Is(hsErr, ErrHandshakeFailed) {
		t.Error("HandshakeError should match ErrHandshakeFailed")
	}
	if got, want := hsErr.Error(), "handshake error [channel=emme-1, received=RunComplete]: expected Start"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	for _, err := range []error{cfgErr, launchErr, hsErr} {
		if !IsConstructionError(err) {
			t.Errorf("IsConstructionError(%T) = false, want true", err)
		}
	}
	if IsConstructionError(NewToolError(ToolRuntime, "boom")) {
		t.Error("IsConstructionError(ToolError) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// ToolError Tests
// -----------------------------------------------------------------------------

func TestToolError_KindsMatchSentinels(t *testing.T) {
	tests := []struct {
		kind      ToolErrorKind
		sentinel  error
		prefix    string
		retryable bool
	}{
		{ToolParameter, ErrParameter, "parameter error", true},
		{ToolRuntime, ErrRuntime, "runtime error", true},
		{ToolNotFound, ErrToolNotFound, "tool-not-found error", false},
		{ToolIncompatible, ErrIncompatibleTool, "incompatible-tool error", false},
	}

	all := []error{ErrParameter, ErrRuntime, ErrToolNotFound, ErrIncompatibleTool}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewToolError(tt.kind, "bad arg").WithOperation("echo")

			if !Is(err, tt.sentinel) {
				t.Errorf("Is(%v) = false, want true", tt.sentinel)
			}
			for _, other := range all {
				if other != tt.sentinel && Is(err, other) {
					t.Errorf("Is(%v) = true, want false", other)
				}
			}
			if err.PeerMessage != "bad arg" {
				t.Errorf("PeerMessage = %q, want %q", err.PeerMessage, "bad arg")
			}
			if want := tt.prefix + " [operation=echo]: bad arg"; err.Error() != want {
				t.Errorf("Error() = %q, want %q", err.Error(), want)
			}
			if IsFatal(err) {
				t.Error("tool errors must leave the session usable")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestToolErrorKind_StringUnknown(t *testing.T) {
	if got := ToolErrorKind(42).String(); got != "unknown" {
		t.Errorf("String() = %q, want %q", got, "unknown")
	}
}

// -----------------------------------------------------------------------------
// ConnectivityError Tests
// -----------------------------------------------------------------------------

func TestConnectivityError(t *testing.T) {
	err := NewConnectivityError("read signal", ErrPeerTerminated).
		WithSessionID("s-1").
		WithChannel("emme-1")

	if got, want := err.Error(), "connectivity error [session=s-1, channel=emme-1]: read signal: modeller peer terminated"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrConnectionLost) {
		t.Error("ConnectivityError should always match ErrConnectionLost")
	}
	if !Is(err, ErrPeerTerminated) {
		t.Error("ConnectivityError should match its cause")
	}
	if !IsFatal(err) {
		t.Error("ConnectivityError must be fatal")
	}
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityCritical)
	}
	if IsRetryable(err) {
		t.Error("ConnectivityError must not be retryable on the same session")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{"basic", NewValidationError("must not be empty"), "validation error: must not be empty"},
		{"with field", NewValidationError("must not be empty").WithField("operation"), "validation error [field=operation]: must not be empty"},
		{"with value", NewValidationError("unknown level").WithField("logbook").WithValue("LOUD"), "validation error [field=logbook]: unknown level (got: LOUD)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !Is(NewValidationError("x"), ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for modeller to connect", 30*time.Second)
	if got, want := err.Error(), "timeout error: waiting for modeller to connect (timeout: 30s)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !IsRetryable(err) {
		t.Error("TimeoutError should be retryable")
	}

	withCause := err.WithCause(io.EOF)
	if !Is(withCause, io.EOF) {
		t.Error("TimeoutError should match its cause")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"disposed", ErrSessionDisposed, true},
		{"wrapped disposed", fmt.Errorf("invoke: %w", ErrSessionDisposed), true},
		{"connectivity", NewConnectivityError("x", nil), true},
		{"wrapped connectivity", Wrap(NewConnectivityError("x", nil), "step 2"), true},
		{"tool", NewToolError(ToolParameter, "x"), false},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(ErrSessionDisposed) {
		t.Error("ErrSessionDisposed should be user facing")
	}
	if !IsUserFacing(NewToolError(ToolRuntime, "x")) {
		t.Error("ToolError should be user facing")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("plain errors should not be user facing")
	}
}

func TestGetSeverity_Defaults(t *testing.T) {
	if GetSeverity(nil) != SeverityDebug {
		t.Error("GetSeverity(nil) should be debug")
	}
	if GetSeverity(errors.New("x")) != SeverityError {
		t.Error("GetSeverity(plain) should be error")
	}
	if GetSeverity(NewValidationError("x")) != SeverityWarning {
		t.Error("GetSeverity(ValidationError) should be warning")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "msg %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	base := NewToolError(ToolRuntime, "boom")
	wrapped := Wrapf(base, "step %d", 3)
	if wrapped.Error() != "step 3: runtime error: boom" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}

	var toolErr *ToolError
	if !As(wrapped, &toolErr) {
		t.Fatal("As(wrapped, *ToolError) = false")
	}
	if toolErr.PeerMessage != "boom" {
		t.Errorf("PeerMessage = %q, want %q", toolErr.PeerMessage, "boom")
	}
}

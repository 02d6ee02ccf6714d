// Package errors provides centralized error definitions and error handling utilities
// for the bridge. It defines the failure taxonomy of a modeller session, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Construction errors are raised while a session is being built. No session is
// returned when one of these occurs:
//   - ConfigurationError: invalid peer location or missing prerequisite resource
//   - LaunchError: the peer process could not be started
//   - HandshakeError: the peer did not connect in time or did not send Start first
//
// Operation errors are raised by Invoke:
//   - ToolError: the peer rejected or failed the operation (parameter, runtime,
//     tool-not-found, incompatible-tool). The session stays usable.
//   - ConnectivityError: I/O failure, unexpected end-of-stream, peer termination
//     or an unknown signal. The session is unusable afterwards.
//   - ErrSessionDisposed: Invoke was called on a closed session.
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewToolError(errors.ToolParameter, "bad arg").WithOperation("tmg2.Assign.assign_traffic")
//	err := errors.NewConnectivityError("lost communication with the modeller peer", io.EOF)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrParameter) { ... }
//
//	var toolErr *errors.ToolError
//	if errors.As(err, &toolErr) { fmt.Println(toolErr.PeerMessage) }
//
//	if errors.IsFatal(err) { session.Close() }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Fatal: the session that produced the error must be discarded
//   - Retryable: the caller may retry; nothing in this module retries on its own
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Construction sentinel errors
var (
	// ErrInvalidConfiguration indicates an invalid peer location or missing resource.
	ErrInvalidConfiguration = New("invalid bridge configuration")
	// ErrLaunchFailed indicates that the peer process could not be started.
	ErrLaunchFailed = New("modeller peer failed to start")
	// ErrHandshakeFailed indicates that the peer did not complete the handshake.
	ErrHandshakeFailed = New("modeller handshake failed")
)

// Operation sentinel errors reported by the peer
var (
	// ErrParameter indicates that the peer rejected the request's arguments.
	ErrParameter = New("tool parameter error")
	// ErrRuntime indicates that the tool raised an unhandled fault while running.
	ErrRuntime = New("tool runtime error")
	// ErrToolNotFound indicates that the named tool does not exist in the peer.
	ErrToolNotFound = New("tool not found")
	// ErrIncompatibleTool indicates that the named tool has no bridge entry point.
	ErrIncompatibleTool = New("tool is not compatible with the bridge")
)

// Session sentinel errors
var (
	// ErrConnectionLost indicates that communication with the peer failed.
	ErrConnectionLost = New("lost communication with the modeller peer")
	// ErrPeerTerminated indicates that the peer sent an unexpected termination signal.
	ErrPeerTerminated = New("modeller peer terminated")
	// ErrProtocolViolation indicates an unknown signal or a malformed frame.
	ErrProtocolViolation = New("protocol violation")
	// ErrSessionDisposed indicates that the session has been closed.
	ErrSessionDisposed = New("session disposed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BridgeError is the base interface for all bridge errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type BridgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the caller may reasonably retry the
	// operation that produced the error.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool

	// IsFatal returns true if the session that produced the error can no
	// longer be used.
	IsFatal() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
	fatal      bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// IsFatal returns whether the error leaves the session unusable.
func (e *baseError) IsFatal() bool {
	return e.fatal
}

// formatPrefixed renders "<prefix> [k=v, ...]: message: cause".
func formatPrefixed(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if message == "" {
		if cause != nil {
			return fmt.Sprintf("%s: %v", prefix, cause)
		}
		return prefix
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Construction Errors
// -----------------------------------------------------------------------------

// ConfigurationError is raised before any I/O when the peer location or a
// prerequisite resource is invalid. It is never retried.
//
// Example:
//
//	err := errors.NewConfigurationError("bridge script not found", fs.ErrNotExist).WithPath("/opt/ModellerBridge.py")
//	fmt.Println(err) // "configuration error [path=/opt/ModellerBridge.py]: bridge script not found: file does not exist"
type ConfigurationError struct {
	baseError
	Field string
	Path  string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds the offending configuration key to the error context.
func (e *ConfigurationError) WithField(field string) *ConfigurationError {
	e.Field = field
	return e
}

// WithPath adds the offending filesystem path to the error context.
func (e *ConfigurationError) WithPath(path string) *ConfigurationError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatPrefixed("configuration error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	if target == ErrInvalidConfiguration {
		return true
	}
	return e.baseError.Is(target)
}

// LaunchError is raised when the peer process could not be started.
//
// Example:
//
//	err := errors.NewLaunchError("start modeller", execErr).WithExecutable("python.exe")
type LaunchError struct {
	baseError
	Executable string
	PID        int
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(message string, cause error) *LaunchError {
	return &LaunchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithExecutable adds the interpreter path to the error context.
func (e *LaunchError) WithExecutable(path string) *LaunchError {
	e.Executable = path
	return e
}

// WithPID adds the process id (when the process did start) to the error context.
func (e *LaunchError) WithPID(pid int) *LaunchError {
	e.PID = pid
	return e
}

// Error returns the formatted error message.
func (e *LaunchError) Error() string {
	var parts []string
	if e.Executable != "" {
		parts = append(parts, fmt.Sprintf("executable=%s", e.Executable))
	}
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	return formatPrefixed("launch error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *LaunchError) Is(target error) bool {
	if _, ok := target.(*LaunchError); ok {
		return true
	}
	if target == ErrLaunchFailed {
		return true
	}
	return e.baseError.Is(target)
}

// HandshakeError is raised when the peer connected but did not send Start
// first, or did not connect before the timeout elapsed.
type HandshakeError struct {
	baseError
	Channel  string
	Received string
}

// NewHandshakeError creates a new HandshakeError.
func NewHandshakeError(message string, cause error) *HandshakeError {
	return &HandshakeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithChannel adds the channel name to the error context.
func (e *HandshakeError) WithChannel(name string) *HandshakeError {
	e.Channel = name
	return e
}

// WithReceived records which signal arrived instead of Start.
func (e *HandshakeError) WithReceived(signal string) *HandshakeError {
	e.Received = signal
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *HandshakeError) WithRetryable(r bool) *HandshakeError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *HandshakeError) Error() string {
	var parts []string
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("channel=%s", e.Channel))
	}
	if e.Received != "" {
		parts = append(parts, fmt.Sprintf("received=%s", e.Received))
	}
	return formatPrefixed("handshake error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *HandshakeError) Is(target error) bool {
	if _, ok := target.(*HandshakeError); ok {
		return true
	}
	if target == ErrHandshakeFailed {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Operation Errors
// -----------------------------------------------------------------------------

// ToolErrorKind identifies which peer-reported failure a ToolError carries.
type ToolErrorKind int

const (
	// ToolParameter means the peer rejected the request's arguments.
	ToolParameter ToolErrorKind = iota
	// ToolRuntime means the tool raised an unhandled fault while executing.
	ToolRuntime
	// ToolNotFound means the named tool does not exist in the peer.
	ToolNotFound
	// ToolIncompatible means the tool exists but cannot be called by the bridge.
	ToolIncompatible
)

// String returns the string representation of the kind.
func (k ToolErrorKind) String() string {
	switch k {
	case ToolParameter:
		return "parameter"
	case ToolRuntime:
		return "runtime"
	case ToolNotFound:
		return "tool-not-found"
	case ToolIncompatible:
		return "incompatible-tool"
	default:
		return "unknown"
	}
}

func (k ToolErrorKind) sentinel() error {
	switch k {
	case ToolParameter:
		return ErrParameter
	case ToolRuntime:
		return ErrRuntime
	case ToolNotFound:
		return ErrToolNotFound
	case ToolIncompatible:
		return ErrIncompatibleTool
	default:
		return nil
	}
}

// ToolError is a failure reported by the peer for one operation. The session
// that produced it remains usable.
//
// Example:
//
//	err := errors.NewToolError(errors.ToolParameter, "bad arg").WithOperation("echo")
//	fmt.Println(err) // "parameter error [operation=echo]: bad arg"
//	fmt.Println(err.PeerMessage) // "bad arg"
type ToolError struct {
	baseError
	Kind        ToolErrorKind
	Operation   string
	PeerMessage string
}

// NewToolError creates a new ToolError carrying the peer-supplied message verbatim.
func NewToolError(kind ToolErrorKind, peerMessage string) *ToolError {
	return &ToolError{
		baseError: baseError{
			message:    peerMessage,
			severity:   SeverityError,
			retryable:  kind == ToolParameter || kind == ToolRuntime,
			userFacing: true,
		},
		Kind:        kind,
		PeerMessage: peerMessage,
	}
}

// WithOperation adds the operation name to the error context.
func (e *ToolError) WithOperation(name string) *ToolError {
	e.Operation = name
	return e
}

// Error returns the formatted error message.
func (e *ToolError) Error() string {
	var parts []string
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("operation=%s", e.Operation))
	}
	return formatPrefixed(e.Kind.String()+" error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ToolError) Is(target error) bool {
	if _, ok := target.(*ToolError); ok {
		return true
	}
	if s := e.Kind.sentinel(); s != nil && target == s {
		return true
	}
	return e.baseError.Is(target)
}

// ConnectivityError is raised for any I/O failure, unexpected end-of-stream,
// peer termination or protocol violation. It is always fatal to the session.
//
// Example:
//
//	err := errors.NewConnectivityError("read signal", io.ErrUnexpectedEOF).WithSessionID("s-1")
type ConnectivityError struct {
	baseError
	SessionID string
	Channel   string
}

// NewConnectivityError creates a new ConnectivityError.
func NewConnectivityError(message string, cause error) *ConnectivityError {
	return &ConnectivityError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
			fatal:      true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *ConnectivityError) WithSessionID(id string) *ConnectivityError {
	e.SessionID = id
	return e
}

// WithChannel adds the channel name to the error context.
func (e *ConnectivityError) WithChannel(name string) *ConnectivityError {
	e.Channel = name
	return e
}

// Error returns the formatted error message.
func (e *ConnectivityError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("channel=%s", e.Channel))
	}
	return formatPrefixed("connectivity error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConnectivityError) Is(target error) bool {
	if _, ok := target.(*ConnectivityError); ok {
		return true
	}
	if target == ErrConnectionLost {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must not be empty").WithField("operation")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for modeller to connect", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for modeller to connect (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the session that produced err must be discarded.
// This covers ConnectivityError and ErrSessionDisposed. Construction errors
// are not fatal in this sense because no session exists yet.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrSessionDisposed) {
		return true
	}
	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsFatal()
	}
	return false
}

// IsRetryable returns true if the error represents a condition where the
// caller may reasonably try again. This checks for:
//   - Errors implementing BridgeError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}

	return Is(err, ErrSessionDisposed)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}

	return SeverityError
}

// IsConstructionError returns true if the error was raised while building a
// session (ConfigurationError, LaunchError or HandshakeError).
func IsConstructionError(err error) bool {
	if err == nil {
		return false
	}

	var configErr *ConfigurationError
	var launchErr *LaunchError
	var handshakeErr *HandshakeError

	return As(err, &configErr) || As(err, &launchErr) || As(err, &handshakeErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to read batch file")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "step %d failed", i)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event types published by a bridge session.
const (
	TypeSessionReady          = "session.ready"
	TypeSessionDisposed       = "session.disposed"
	TypeOperationStarted      = "operation.started"
	TypeOperationProgress     = "operation.progress"
	TypeOperationPrint        = "operation.print"
	TypeOperationToolResolved = "operation.tool_resolved"
	TypeOperationCompleted    = "operation.completed"
	TypeOperationFailed       = "operation.failed"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionReadyEvent is emitted once the peer has sent Start.
type SessionReadyEvent struct {
	baseEvent
	SessionID string
	Channel   string
	PID       int  // 0 when attached to an externally started peer
	Attached  bool // the peer was started by someone else
}

// NewSessionReadyEvent creates a SessionReadyEvent.
func NewSessionReadyEvent(sessionID, channel string, pid int, attached bool) SessionReadyEvent {
	return SessionReadyEvent{
		baseEvent: newBaseEvent(TypeSessionReady),
		SessionID: sessionID,
		Channel:   channel,
		PID:       pid,
		Attached:  attached,
	}
}

// SessionDisposedEvent is emitted when a session is torn down, either by
// Close or by a fatal error.
type SessionDisposedEvent struct {
	baseEvent
	SessionID string
	Reason    string // "closed", or the fatal error's message
}

// NewSessionDisposedEvent creates a SessionDisposedEvent.
func NewSessionDisposedEvent(sessionID, reason string) SessionDisposedEvent {
	return SessionDisposedEvent{
		baseEvent: newBaseEvent(TypeSessionDisposed),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Operation Events
// -----------------------------------------------------------------------------

// OperationStartedEvent is emitted after a request has been written.
type OperationStartedEvent struct {
	baseEvent
	SessionID string
	Operation string
	Logbook   string
}

// NewOperationStartedEvent creates an OperationStartedEvent.
func NewOperationStartedEvent(sessionID, operation, logbook string) OperationStartedEvent {
	return OperationStartedEvent{
		baseEvent: newBaseEvent(TypeOperationStarted),
		SessionID: sessionID,
		Operation: operation,
		Logbook:   logbook,
	}
}

// OperationProgressEvent carries one progress report from the peer.
type OperationProgressEvent struct {
	baseEvent
	SessionID string
	Operation string
	Fraction  float32
}

// NewOperationProgressEvent creates an OperationProgressEvent.
func NewOperationProgressEvent(sessionID, operation string, fraction float32) OperationProgressEvent {
	return OperationProgressEvent{
		baseEvent: newBaseEvent(TypeOperationProgress),
		SessionID: sessionID,
		Operation: operation,
		Fraction:  fraction,
	}
}

// OperationPrintEvent carries console output from the peer.
type OperationPrintEvent struct {
	baseEvent
	SessionID string
	Operation string
	Text      string
}

// NewOperationPrintEvent creates an OperationPrintEvent.
func NewOperationPrintEvent(sessionID, operation, text string) OperationPrintEvent {
	return OperationPrintEvent{
		baseEvent: newBaseEvent(TypeOperationPrint),
		SessionID: sessionID,
		Operation: operation,
		Text:      text,
	}
}

// ToolResolvedEvent is emitted when the peer acknowledges that the
// requested tool exists and is about to run.
type ToolResolvedEvent struct {
	baseEvent
	SessionID string
	Operation string
}

// NewToolResolvedEvent creates a ToolResolvedEvent.
func NewToolResolvedEvent(sessionID, operation string) ToolResolvedEvent {
	return ToolResolvedEvent{
		baseEvent: newBaseEvent(TypeOperationToolResolved),
		SessionID: sessionID,
		Operation: operation,
	}
}

// OperationCompletedEvent is emitted when an operation ends successfully.
type OperationCompletedEvent struct {
	baseEvent
	SessionID string
	Operation string
	HasValue  bool
	Value     string
	Duration  time.Duration
}

// NewOperationCompletedEvent creates an OperationCompletedEvent. value is
// nil when the peer returned no value.
func NewOperationCompletedEvent(sessionID, operation string, value *string, duration time.Duration) OperationCompletedEvent {
	e := OperationCompletedEvent{
		baseEvent: newBaseEvent(TypeOperationCompleted),
		SessionID: sessionID,
		Operation: operation,
		Duration:  duration,
	}
	if value != nil {
		e.HasValue = true
		e.Value = *value
	}
	return e
}

// OperationFailedEvent is emitted when an operation ends with an error.
type OperationFailedEvent struct {
	baseEvent
	SessionID string
	Operation string
	Kind      string // parameter, runtime, tool-not-found, incompatible-tool, connectivity
	Message   string
	Fatal     bool // the session is no longer usable
	Duration  time.Duration
}

// NewOperationFailedEvent creates an OperationFailedEvent.
func NewOperationFailedEvent(sessionID, operation, kind, message string, fatal bool, duration time.Duration) OperationFailedEvent {
	return OperationFailedEvent{
		baseEvent: newBaseEvent(TypeOperationFailed),
		SessionID: sessionID,
		Operation: operation,
		Kind:      kind,
		Message:   message,
		Fatal:     fatal,
		Duration:  duration,
	}
}

// Package event provides a pub-sub event bus that lets observers follow a
// bridge session without the session knowing about them.
//
// The bridge publishes lifecycle and operation events; the metrics
// collector, the progress UI and the logs subscribe to them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Session Lifecycle:
//   - [SessionReadyEvent]: the peer sent Start
//   - [SessionDisposedEvent]: the session was closed or hit a fatal error
//
// Operations:
//   - [OperationStartedEvent]: a request was written
//   - [OperationProgressEvent], [OperationPrintEvent], [ToolResolvedEvent]:
//     side-effect signals received before the terminal one
//   - [OperationCompletedEvent], [OperationFailedEvent]: the terminal outcome
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publisher's goroutine and are protected against
// panics. Publishing on a nil *Bus does nothing, so components can hold an
// optional bus without nil checks.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeOperationProgress, func(e event.Event) {
//	    p := e.(event.OperationProgressEvent)
//	    fmt.Printf("%s: %.0f%%\n", p.Operation, p.Fraction*100)
//	})
//
//	session, err := bridge.New(ctx, bridge.WithEventBus(bus), ...)
package event

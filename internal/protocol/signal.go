package protocol

// Signal is a decoded peer-to-bridge message. The set of implementations is
// closed; switch on the concrete type.
type Signal interface {
	Code() Code
	signal()
}

// Start is sent once by the peer after it has connected and initialized.
// It may be echoed again later and is then ignored.
type Start struct{}

// RunComplete ends an operation that produced no value.
type RunComplete struct{}

// RunCompleteWithValue ends an operation that produced a value.
type RunCompleteWithValue struct{ Value string }

// Termination means the peer is shutting down.
type Termination struct{}

// ParameterError means the peer rejected the request's arguments.
type ParameterError struct{ Message string }

// RuntimeError means the operation failed while executing.
type RuntimeError struct{ Message string }

// ToolNotFound means no tool is registered under the requested namespace.
type ToolNotFound struct{ Message string }

// IncompatibleTool means the tool exists but has no entry point for the bridge.
type IncompatibleTool struct{ Message string }

// PrintMessage carries console output produced by the operation.
type PrintMessage struct{ Text string }

// ProgressReport carries the operation's completion fraction, nominally in [0,1].
type ProgressReport struct{ Fraction float32 }

// ToolExists is the bodiless acknowledgement the peer sends once the
// requested tool has been resolved, before it starts executing.
type ToolExists struct{}

// Unknown is any code the bridge does not expect from a peer.
type Unknown struct{ Raw Code }

func (Start) Code() Code                { return CodeStart }
func (RunComplete) Code() Code          { return CodeRunComplete }
func (RunCompleteWithValue) Code() Code { return CodeRunCompleteWithValue }
func (Termination) Code() Code          { return CodeTermination }
func (ParameterError) Code() Code       { return CodeParameterError }
func (RuntimeError) Code() Code         { return CodeRuntimeError }
func (ToolNotFound) Code() Code         { return CodeToolNotFound }
func (IncompatibleTool) Code() Code     { return CodeIncompatibleTool }
func (PrintMessage) Code() Code         { return CodePrintMessage }
func (ProgressReport) Code() Code       { return CodeProgressReport }
func (ToolExists) Code() Code           { return CodeCheckToolExists }
func (u Unknown) Code() Code            { return u.Raw }

func (Start) signal()                {}
func (RunComplete) signal()          {}
func (RunCompleteWithValue) signal() {}
func (Termination) signal()          {}
func (ParameterError) signal()       {}
func (RuntimeError) signal()         {}
func (ToolNotFound) signal()         {}
func (IncompatibleTool) signal()     {}
func (PrintMessage) signal()         {}
func (ProgressReport) signal()       {}
func (ToolExists) signal()           {}
func (Unknown) signal()              {}

// IsTerminal reports whether s ends an in-flight operation. Unknown is
// terminal because the stream can no longer be trusted after it.
func IsTerminal(s Signal) bool {
	switch s.(type) {
	case Start, PrintMessage, ProgressReport, ToolExists:
		return false
	default:
		return true
	}
}

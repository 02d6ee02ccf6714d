package fakepeer

import (
	"time"

	"github.com/TravelModellingGroup/emmebridge/internal/channel"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// Writer emits signals for the request being served. After the first write
// error every call is a no-op.
type Writer struct {
	conn     *channel.Conn
	answered func(at time.Time) // called once, before the terminal signal is written
	err      error
	terminal bool
	shutdown bool
}

// Send writes any signal.
func (w *Writer) Send(s protocol.Signal) {
	if w.err != nil {
		return
	}
	b, err := protocol.EncodeSignal(s)
	if err != nil {
		w.err = err
		return
	}
	if protocol.IsTerminal(s) && !w.terminal {
		w.terminal = true
		if w.answered != nil {
			w.answered(time.Now())
		}
	}
	w.write(b)
	if _, ok := s.(protocol.Termination); ok {
		w.shutdown = true
	}
}

// Raw writes b verbatim. Use it to send truncated or corrupt frames.
func (w *Writer) Raw(b []byte) {
	if w.err != nil {
		return
	}
	w.write(b)
}

func (w *Writer) write(b []byte) {
	w.err = w.conn.WriteAll(b)
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) Print(text string)           { w.Send(protocol.PrintMessage{Text: text}) }
func (w *Writer) Progress(fraction float32)   { w.Send(protocol.ProgressReport{Fraction: fraction}) }
func (w *Writer) ToolResolved()               { w.Send(protocol.ToolExists{}) }
func (w *Writer) Complete()                   { w.Send(protocol.RunComplete{}) }
func (w *Writer) CompleteWithValue(v string)  { w.Send(protocol.RunCompleteWithValue{Value: v}) }
func (w *Writer) ParameterError(msg string)   { w.Send(protocol.ParameterError{Message: msg}) }
func (w *Writer) RuntimeError(msg string)     { w.Send(protocol.RuntimeError{Message: msg}) }
func (w *Writer) ToolNotFound(msg string)     { w.Send(protocol.ToolNotFound{Message: msg}) }
func (w *Writer) IncompatibleTool(msg string) { w.Send(protocol.IncompatibleTool{Message: msg}) }
func (w *Writer) Terminate()                  { w.Send(protocol.Termination{}) }

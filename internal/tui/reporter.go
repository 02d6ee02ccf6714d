// Package tui shows the progress of modeller operations in the terminal.
package tui

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Reporter receives the side effects of running operations. Writes are
// modeller print messages, one per line.
type Reporter interface {
	io.Writer
	Step(index, total int, operation string)
	Progress(fraction float32)
	StepDone(err error)
	// Close flushes the display. The Reporter must not be used afterwards.
	Close() error
}

// lineSplitter turns Write calls into whole lines.
type lineSplitter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	emit func(string)
}

func (s *lineSplitter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	for {
		idx := bytes.IndexByte(s.buf.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		s.emit(strings.TrimRight(string(s.buf.Next(idx+1)), "\r\n"))
	}
}

func (s *lineSplitter) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf.Len() > 0 {
		s.emit(s.buf.String())
		s.buf.Reset()
	}
}

// Plain reports as plain text lines, for logs and pipes.
type Plain struct {
	out       io.Writer
	operation string
	last      int // last whole percentage written, -1 for none
	lines     *lineSplitter
}

// NewPlain returns a Reporter that writes to out.
func NewPlain(out io.Writer) *Plain {
	p := &Plain{out: out, last: -1}
	p.lines = &lineSplitter{emit: func(line string) { fmt.Fprintln(p.out, line) }}
	return p
}

func (p *Plain) Write(b []byte) (int, error) { return p.lines.Write(b) }

func (p *Plain) Step(index, total int, operation string) {
	p.operation = operation
	p.last = -1
	if total > 1 {
		fmt.Fprintf(p.out, "[%d/%d] %s\n", index+1, total, operation)
		return
	}
	fmt.Fprintf(p.out, "%s\n", operation)
}

// Progress writes a line each time the whole percentage moves by ten.
func (p *Plain) Progress(fraction float32) {
	pct := int(fraction*100 + 0.5)
	if p.last >= 0 && pct < p.last+10 && pct != 100 {
		return
	}
	if pct == p.last {
		return
	}
	p.last = pct
	fmt.Fprintf(p.out, "%s: %d%%\n", p.operation, pct)
}

func (p *Plain) StepDone(err error) {
	p.lines.flush()
	if err != nil {
		fmt.Fprintf(p.out, "%s: failed: %v\n", p.operation, err)
		return
	}
	fmt.Fprintf(p.out, "%s: done\n", p.operation)
}

func (p *Plain) Close() error {
	p.lines.flush()
	return nil
}

// Interactive drives a bubbletea program showing Model.
type Interactive struct {
	program *tea.Program
	done    chan struct{}
	err     error
	lines   *lineSplitter
}

// NewInteractive starts the display on out. Keyboard input is not read, so
// interrupts reach the caller's signal handling.
func NewInteractive(out io.Writer, title string) *Interactive {
	r := &Interactive{
		program: tea.NewProgram(NewModel(title), tea.WithOutput(out), tea.WithInput(nil)),
		done:    make(chan struct{}),
	}
	r.lines = &lineSplitter{emit: func(line string) { r.program.Send(PrintMsg(line)) }}
	go func() {
		defer close(r.done)
		_, r.err = r.program.Run()
	}()
	return r
}

func (r *Interactive) Write(b []byte) (int, error) { return r.lines.Write(b) }

func (r *Interactive) Step(index, total int, operation string) {
	r.program.Send(StepMsg{Index: index, Total: total, Operation: operation})
}

func (r *Interactive) Progress(fraction float32) {
	r.program.Send(ProgressMsg(fraction))
}

func (r *Interactive) StepDone(err error) {
	r.lines.flush()
	r.program.Send(StepDoneMsg{Err: err})
}

func (r *Interactive) Close() error {
	r.lines.flush()
	r.program.Send(DoneMsg{})
	<-r.done
	return r.err
}

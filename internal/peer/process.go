package peer

import (
	"os"
	"os/exec"
	"sync"
	"time"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/logging"
)

// DefaultShutdownGrace is how long Stop waits for the peer to exit on its
// own before killing it.
const DefaultShutdownGrace = 5 * time.Second

// outputWaitDelay bounds how long Wait keeps draining stdout and stderr
// after the peer exits, in case a grandchild inherited them.
const outputWaitDelay = 2 * time.Second

// Process is a running peer. Its stdout and stderr are written to the
// session log at DEBUG level.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stdout *logging.LineWriter
	stderr *logging.LineWriter

	killOnce sync.Once
}

// Start launches the peer described by spec with channel as its last
// argument. The process is not tied to a context: it lives until it exits,
// Stop is called, or Kill is called.
func Start(spec Spec, channel string, logger *logging.Logger) (*Process, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	cmd := exec.Command(spec.Executable, spec.Args(channel)...)
	cmd.Dir = spec.Dir()
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = outputWaitDelay
	configureProcAttr(cmd)

	p := &Process{
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: logger.LineWriter("stdout"),
		stderr: logger.LineWriter("stderr"),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, apperrors.NewLaunchError("start modeller process", err).WithExecutable(spec.Executable)
	}

	logger.Info("modeller process started",
		"pid", cmd.Process.Pid,
		"executable", spec.Executable,
		"script", spec.Script,
		"dir", cmd.Dir)

	go func() {
		p.err = cmd.Wait()
		p.stdout.Flush()
		p.stderr.Flush()
		logger.Info("modeller process exited", "pid", cmd.Process.Pid, "error", errString(p.err))
		close(p.done)
	}()

	return p, nil
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error. It is only meaningful after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or timeout elapses, and reports
// whether it exited.
func (p *Process) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return p.Exited()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Kill force-kills the process and its descendants and waits for it to be
// reaped. It is safe to call more than once.
func (p *Process) Kill() {
	if p.Exited() {
		return
	}
	p.killOnce.Do(func() {
		killTree(p.cmd)
	})
	<-p.done
}

// Stop gives the process grace to exit on its own, which it normally does
// after receiving Termination, then kills it. It reports whether the
// process exited without being killed.
func (p *Process) Stop(grace time.Duration) bool {
	if p.Wait(grace) {
		return true
	}
	p.Kill()
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package peer launches and supervises the modeller process on the other end
// of a bridge channel.
package peer

import (
	"errors"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
)

// ScriptExt is the extension the bridge script must have.
const ScriptExt = ".py"

// Spec describes how to start a modeller peer.
//
// The process is started as
//
//	<Executable> [InterpreterArgs...] <Script> <ProjectFile> <UserInitials> <0|1> <channel>
//
// where the fourth argument is the performance flag.
type Spec struct {
	Executable      string
	InterpreterArgs []string
	Script          string
	ProjectFile     string
	UserInitials    string
	PerformanceMode bool
	WorkingDir      string   // default: the directory holding Script
	Env             []string // KEY=VALUE pairs appended to the inherited environment
}

// Args returns the arguments passed to Executable for the given channel.
func (s Spec) Args(channel string) []string {
	perf := "0"
	if s.PerformanceMode {
		perf = "1"
	}
	args := make([]string, 0, len(s.InterpreterArgs)+5)
	args = append(args, s.InterpreterArgs...)
	return append(args, s.Script, s.ProjectFile, s.UserInitials, perf, channel)
}

// Dir returns the working directory the peer is started in.
func (s Spec) Dir() string {
	if s.WorkingDir != "" {
		return s.WorkingDir
	}
	return filepath.Dir(s.Script)
}

// Validate checks that every artifact the peer needs is present on fsys.
// It runs before any transport is created, so failures are reported as
// configuration errors. A bare executable name is resolved through PATH.
func (s Spec) Validate(fsys afero.Fs) error {
	if s.Executable == "" {
		return apperrors.NewConfigurationError("peer executable is not set", nil).WithField("peer.executable")
	}
	if !strings.ContainsAny(s.Executable, `/\`) {
		if _, err := exec.LookPath(s.Executable); err != nil {
			return apperrors.NewConfigurationError("peer executable not found on PATH", err).
				WithField("peer.executable").WithPath(s.Executable)
		}
	} else if err := requireFile(fsys, "peer.executable", s.Executable); err != nil {
		return err
	}

	if s.Script == "" {
		return apperrors.NewConfigurationError("bridge script is not set", nil).WithField("peer.script")
	}
	if !strings.EqualFold(filepath.Ext(s.Script), ScriptExt) {
		return apperrors.NewConfigurationError("bridge script must be a "+ScriptExt+" file", nil).
			WithField("peer.script").WithPath(s.Script)
	}
	if err := requireFile(fsys, "peer.script", s.Script); err != nil {
		return err
	}

	if s.ProjectFile == "" {
		return apperrors.NewConfigurationError("project file is not set", nil).WithField("peer.project_file")
	}
	if err := requireFile(fsys, "peer.project_file", s.ProjectFile); err != nil {
		return err
	}

	if strings.TrimSpace(s.UserInitials) == "" {
		return apperrors.NewConfigurationError("user initials are not set", nil).WithField("peer.user_initials")
	}

	if s.WorkingDir != "" {
		info, err := fsys.Stat(s.WorkingDir)
		if err != nil {
			return apperrors.NewConfigurationError("working directory is not accessible", err).
				WithField("peer.working_dir").WithPath(s.WorkingDir)
		}
		if !info.IsDir() {
			return apperrors.NewConfigurationError("working directory is not a directory", nil).
				WithField("peer.working_dir").WithPath(s.WorkingDir)
		}
	}

	return nil
}

func requireFile(fsys afero.Fs, field, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		msg := "file is not accessible"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "file does not exist"
		}
		return apperrors.NewConfigurationError(msg, err).WithField(field).WithPath(path)
	}
	if !info.Mode().IsRegular() {
		return apperrors.NewConfigurationError("not a regular file", nil).WithField(field).WithPath(path)
	}
	return nil
}

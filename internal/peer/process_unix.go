//go:build !windows

package peer

import (
	"os/exec"
	"syscall"
)

// configureProcAttr puts the peer in its own process group so the whole
// tree can be signalled at once.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree sends SIGKILL to the peer's process group, then to the peer
// itself in case it left the group.
func killTree(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	_ = cmd.Process.Kill()
}

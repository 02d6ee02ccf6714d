//go:build windows

package peer

import (
	"os/exec"
	"strconv"
	"syscall"
)

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// killTree terminates the peer and every process it started. EMME spawns
// helper processes that would otherwise keep the project locked.
func killTree(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		_ = cmd.Process.Kill()
	}
}

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// killProcessTree starts the child in its own process group and kills the
// whole group on cancellation, so launcher scripts take their java with them.
func killProcessTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup puts the child in its own process group and makes context
// cancellation kill the whole group, so interpreter grandchildren do not
// outlive a timeout.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}

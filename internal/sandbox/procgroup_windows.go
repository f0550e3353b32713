//go:build windows

package sandbox

import "os/exec"

// setProcGroup is a no-op on Windows; exec.CommandContext already kills
// the direct child on cancellation.
func setProcGroup(cmd *exec.Cmd) {}

//go:build unix

package agent

import (
	"os/exec"
	"syscall"
)

// detach puts the agent in its own session so it outlives the console.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

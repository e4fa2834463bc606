//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// detach starts the child in a new session so signals aimed at the caller's
// process group do not reach the solver.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// killGroup kills the session the solver leads, including mpirun children.
func killGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

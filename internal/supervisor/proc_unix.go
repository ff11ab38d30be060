//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// configureCommand puts the worker in its own process group so a terminal
// interrupt aimed at the host does not reach it before Stop does.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Windows has no SIGTERM; closing stdin already asked the worker to finish.
func terminate(p *os.Process) error {
	return p.Kill()
}

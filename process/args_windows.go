//go:build windows

package process

import (
	"os/exec"
	"strings"
	"syscall"
)

// configureArgs hands the argument string to CreateProcess untouched. Only
// the executable is quoted.
func configureArgs(cmd *exec.Cmd, setup Setup) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmdLine := syscall.EscapeArg(setup.Executable)
	cmd.Args = []string{setup.Executable}
	if strings.TrimSpace(setup.Arguments) != "" {
		cmdLine += " " + setup.Arguments
		cmd.Args = append(cmd.Args, setup.Arguments)
	}
	cmd.SysProcAttr.CmdLine = cmdLine
	return nil
}

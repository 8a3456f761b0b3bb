//go:build !unix && !windows

package process

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}

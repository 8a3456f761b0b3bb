//go:build windows

package process

import (
	"os"
	"syscall"
)

const createNoWindow = 0x08000000

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}

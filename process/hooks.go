package process

import (
	"fmt"
	"os/exec"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// Hooks are the customization points of a Handler. Embed DefaultHooks to
// override only some of them.
//
// OnOutput and OnError are called from two different goroutines, one per
// stream, while the process is running. They must not block: the Handler
// waits for both streams before it returns, whatever the timeout.
type Hooks interface {
	// Configure prepares cmd, created by exec.Command(setup.Executable), for
	// launch. The Handler redirects stdout and stderr after Configure
	// returns, so those are never under hook control. Stdin is left as
	// Configure sets it, the null device by default. An error aborts the
	// run as a launch failure.
	Configure(cmd *exec.Cmd, setup Setup) error
	// OnOutput receives each stdout line.
	OnOutput(rec *Recorder, line string)
	// OnError receives each stderr line.
	OnError(rec *Recorder, line string)
}

// DefaultHooks records every line and configures the command from Setup.
type DefaultHooks struct{}

var _ Hooks = DefaultHooks{}

func (DefaultHooks) Configure(cmd *exec.Cmd, setup Setup) error {
	cmd.SysProcAttr = sysProcAttr()
	if err := configureArgs(cmd, setup); err != nil {
		return err
	}
	if strings.TrimSpace(setup.WorkingDir) != "" {
		cmd.Dir = setup.WorkingDir
	}
	cmd.Env = setup.Environ()
	return nil
}

func (DefaultHooks) OnOutput(rec *Recorder, line string) {
	rec.AppendOutput(line)
}

func (DefaultHooks) OnError(rec *Recorder, line string) {
	rec.AppendError(line)
}

// SplitArguments splits an argument string the way a POSIX shell splits
// words, honouring quotes and backslash escapes. Nothing is expanded. This is
// how argv is built on unix; windows passes the string to the child as is.
func SplitArguments(arguments string) ([]string, error) {
	if strings.TrimSpace(arguments) == "" {
		return nil, nil
	}
	args, err := shlex.Split(arguments, true)
	if err != nil {
		return nil, fmt.Errorf("parsing arguments %q: %w", arguments, err)
	}
	return args, nil
}

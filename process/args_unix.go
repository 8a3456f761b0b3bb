//go:build !windows

package process

import "os/exec"

func configureArgs(cmd *exec.Cmd, setup Setup) error {
	args, err := SplitArguments(setup.Arguments)
	if err != nil {
		return err
	}
	cmd.Args = append([]string{setup.Executable}, args...)
	return nil
}

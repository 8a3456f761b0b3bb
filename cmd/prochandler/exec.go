package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CZERTAINLY/prochandler/internal/service"
	"github.com/CZERTAINLY/prochandler/process"
)

func newExecCmd(v *viper.Viper) *cobra.Command {
	var (
		dir string
		env []string
	)
	cmd := &cobra.Command{
		Use:   "exec [flags] -- EXECUTABLE [ARGUMENTS]",
		Short: "runs a single process and prints its result",
		Long: `Runs EXECUTABLE with ARGUMENTS, a single string split with POSIX
quoting rules and never passed to a shell. The process is killed after
--timeout or on interrupt. The command fails unless the process exits with 0.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setup := process.Setup{
				Executable: args[0],
				WorkingDir: dir,
			}
			if len(args) == 2 {
				setup.Arguments = args[1]
			}
			vars, err := parseEnv(env)
			if err != nil {
				return err
			}
			setup.EnvironmentVariables = vars
			return doExec(cmd, v, setup)
		},
	}
	cmd.Flags().Duration("timeout", process.DefaultTimeout, "maximum run time, the process is killed afterwards")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory of the process")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE added to the environment, can be repeated")
	if err := v.BindPFlag("timeout", cmd.Flags().Lookup("timeout")); err != nil {
		panic(err)
	}
	return cmd
}

func doExec(cmd *cobra.Command, v *viper.Viper, setup process.Setup) error {
	reporter, err := service.NewWriteReporter(cmd.OutOrStdout(), v.GetString("format"))
	if err != nil {
		return err
	}

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = process.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	slog.DebugContext(ctx, "executing", "path", setup.Executable, "timeout", timeout)
	res, err := process.ExecuteContext(ctx, setup)
	if err != nil {
		return err
	}

	jr := service.JobResult{Name: setup.Executable, Result: res}
	err = reporter.Report(ctx, jr)
	if cerr := reporter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("printing result: %w", err)
	}
	if reason := jr.Reason(); reason != "" {
		return fmt.Errorf("%s: %s", setup.Executable, reason)
	}
	return nil
}

func parseEnv(env []string) ([]process.EnvVar, error) {
	vars := make([]process.EnvVar, 0, len(env))
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", kv)
		}
		vars = append(vars, process.EnvVar{Key: key, Value: value})
	}
	return vars, nil
}

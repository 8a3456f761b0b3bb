package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CZERTAINLY/prochandler/internal/log"
)

const envPrefix = "PROCHANDLER"

var userConfigPath string // /default/config/path/prochandler on given OS

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "prochandler")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("prochandler failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "prochandler",
		Short:        "Runs external processes and reports their captured output",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// setup logging
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initLogging(cmd, v)
		},
	}

	// root flags
	rootCmd.PersistentFlags().String("config", "", "Batch config file to load - default is prochandler.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")
	rootCmd.PersistentFlags().String("format", "yaml", "result format: yaml or json")
	for _, name := range []string{"config", "verbose", "format"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newExecCmd(v))
	rootCmd.AddCommand(newBatchCmd(v))
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a prochandler",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			_, _ = fmt.Fprintln(out, "prochandler: version info not available")
			return
		}

		_, _ = fmt.Fprintf(out, "prochandler: %s\n", info.Main.Version)
		_, _ = fmt.Fprintf(out, "go:          %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				_, _ = fmt.Fprintf(out, "commit:      %s\n", s.Value)
			case "vcs.time":
				_, _ = fmt.Fprintf(out, "date:        %s\n", s.Value)
			case "vcs.modified":
				_, _ = fmt.Fprintf(out, "dirty:       %s\n", s.Value)
			}
		}
	},
}

// initLogging installs the default logger. --verbose and PROCHANDLER_VERBOSE
// enable debug records.
func initLogging(cmd *cobra.Command, v *viper.Viper) error {
	logger := log.New(cmd.ErrOrStderr(), v.GetBool("verbose"))
	slog.SetDefault(logger)

	attrs := slog.Group("prochandler",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	)
	cmd.SetContext(log.ContextAttrs(cmd.Context(), attrs))
	slog.DebugContext(cmd.Context(), "prochandler run", "format", v.GetString("format"))
	return nil
}

// resolveConfigPath returns the batch config to use: --config,
// PROCHANDLER_CONFIG, then prochandler.yaml in the user config dir or in
// the current directory.
func resolveConfigPath(v *viper.Viper) (string, error) {
	if path := v.GetString("config"); path != "" {
		return path, nil
	}
	for _, d := range []string{userConfigPath, "."} {
		path := filepath.Join(d, "prochandler.yaml")
		if exists(path) {
			return path, nil
		}
	}
	return "", errNoConfig
}

var errNoConfig = errors.New("no config file found: use --config or --init")

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

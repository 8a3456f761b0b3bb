package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/prochandler/internal/model"
	"github.com/CZERTAINLY/prochandler/internal/service"
	"github.com/CZERTAINLY/prochandler/process"
)

func newBatchCmd(v *viper.Viper) *cobra.Command {
	var (
		initConfig bool
		parallel   int
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "runs all jobs of a config file concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if initConfig {
				return storeDefaultConfig(ctx, cmd, v)
			}

			configPath, err := resolveConfigPath(v)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(ctx, configPath)
			if err != nil {
				return err
			}
			if parallel > 0 {
				cfg.Parallel = parallel
			}
			return doBatch(ctx, cmd, v, *cfg, outDir)
		},
	}
	cmd.Flags().BoolVar(&initConfig, "init", false, "store a default config and exit")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "maximum number of processes running at once, overrides the config")
	cmd.Flags().StringVar(&outDir, "dir", "", "directory to store a result file per job")
	return cmd
}

func doBatch(ctx context.Context, cmd *cobra.Command, v *viper.Viper, cfg model.Config, outDir string) error {
	stdout, err := service.NewWriteReporter(cmd.OutOrStdout(), v.GetString("format"))
	if err != nil {
		return err
	}
	reporters := []service.Reporter{stdout}
	if outDir != "" {
		r, err := service.NewOSRootReporter(outDir, v.GetString("format"))
		if err != nil {
			return fmt.Errorf("initializing reporter: %w", err)
		}
		reporters = append(reporters, r)
	}

	batch, err := service.NewBatch(cfg, process.New(), reporters...)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "starting a batch", "jobs", len(cfg.Jobs), "parallel", cfg.ParallelOrDefault())
	return batch.Do(ctx)
}

func loadConfig(ctx context.Context, path string) (*model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := model.LoadConfig(f)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.ErrorContext(ctx, "invalid config", d.Attr("detail"))
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	slog.DebugContext(ctx, "config loaded", "path", path)
	return cfg, nil
}

// storeDefaultConfig writes model.DefaultConfig to --config or to the user
// config directory, it never overwrites an existing file.
func storeDefaultConfig(ctx context.Context, cmd *cobra.Command, v *viper.Viper) error {
	configPath := v.GetString("config")
	if configPath == "" {
		configPath = filepath.Join(userConfigPath, "prochandler.yaml")
	}
	if exists(configPath) {
		return fmt.Errorf("config %s: %w", configPath, os.ErrExist)
	}
	err := os.MkdirAll(filepath.Dir(configPath), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", configPath, err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	err = errors.Join(enc.Encode(model.DefaultConfig()), enc.Close(), f.Close())
	if err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	slog.InfoContext(ctx, "default config stored", "path", configPath)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}

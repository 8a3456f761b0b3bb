package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/CZERTAINLY/prochandler/internal/log"
	"github.com/CZERTAINLY/prochandler/internal/model"
	"github.com/CZERTAINLY/prochandler/internal/parallel"
	"github.com/CZERTAINLY/prochandler/process"
)

var ErrJobFailed = errors.New("job failed")

// JobResult is the outcome of one job of a batch.
type JobResult struct {
	Name   string         `json:"name" yaml:"name"`
	Result process.Result `json:"result" yaml:"result"`
	Error  string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Reason explains why a job failed, empty on success.
func (r JobResult) Reason() string {
	res := r.Result
	switch {
	case r.Error != "":
		return "err: " + r.Error
	case !res.WasStarted:
		return "not started"
	case res.Killed:
		return "killed after timeout"
	case !res.HasCompleted || res.ExitCode == nil:
		return "exit code is not available"
	case *res.ExitCode != 0:
		return "exit code " + strconv.Itoa(*res.ExitCode)
	}
	return ""
}

type Batch struct {
	config    model.Config
	handler   *process.Handler
	reporters []Reporter
}

func NewBatch(cfg model.Config, handler *process.Handler, reporters ...Reporter) (*Batch, error) {
	if cfg.Version != 0 {
		return nil, fmt.Errorf("config version %d is not supported, expected 0", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if handler == nil {
		handler = process.New()
	}
	return &Batch{
		config:    cfg,
		handler:   handler,
		reporters: reporters,
	}, nil
}

// Do runs all jobs and reports each result as soon as it is available.
// Returns the failed jobs and the reporter errors joined, nil if all jobs
// succeeded.
func (b *Batch) Do(ctx context.Context) error {
	defer b.closeReporters(ctx)

	var errs []error
	for jr := range parallel.Map(ctx, b.config.ParallelOrDefault(), b.config.Jobs, b.runJob) {
		jctx := log.ContextAttrs(ctx, slog.String("job_name", jr.Name), slog.String("run_id", jr.Result.ID))
		if reason := jr.Reason(); reason != "" {
			slog.ErrorContext(jctx, "job has failed", "reason", reason)
			errs = append(errs, fmt.Errorf("%w: %s: %s", ErrJobFailed, jr.Name, reason))
		} else {
			slog.DebugContext(jctx, "job succeeded", "duration", jr.Result.Duration())
		}
		if err := b.report(jctx, jr); err != nil {
			slog.ErrorContext(jctx, "report failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runJob never returns an error: problems end up in JobResult, so every job
// reaches the reporters.
func (b *Batch) runJob(ctx context.Context, job model.Job) (JobResult, error) {
	jr := JobResult{Name: job.Name}
	if err := ctx.Err(); err != nil {
		jr.Error = err.Error()
		return jr, nil
	}
	timeout, err := b.config.JobTimeout(job)
	if err != nil {
		jr.Error = err.Error()
		return jr, nil
	}

	ctx = log.ContextAttrs(ctx, slog.String("job_name", job.Name))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.DebugContext(ctx, "starting a job", "timeout", timeout)
	res, err := b.handler.ExecuteContext(ctx, job.Setup())
	if err != nil {
		jr.Error = err.Error()
	}
	jr.Result = res
	return jr, nil
}

func (b *Batch) report(ctx context.Context, jr JobResult) error {
	var errs []error
	for _, r := range b.reporters {
		if err := r.Report(ctx, jr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Batch) closeReporters(ctx context.Context) {
	for _, r := range b.reporters {
		if closer, ok := r.(ReportCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing reporter have failed", "error", err)
			}
		}
	}
}

package process

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/prochandler/internal/log"
)

const (
	// DefaultTimeout bounds Execute when no positive timeout is given.
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is how often a cancellable run checks its context.
	// It is also the worst case latency between a cancellation and the kill.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultFlushTimeout bounds how long output is drained after the process
	// exited or was killed.
	DefaultFlushTimeout = 2 * time.Second
)

// Executor runs external processes.
type Executor interface {
	Execute(setup Setup, timeout time.Duration) (Result, error)
	ExecuteAsync(ctx context.Context, setup Setup) (<-chan Result, error)
}

var _ Executor = (*Handler)(nil)

var errNoProcessState = errors.New("process exit status not available")

// Handler executes external processes and captures their output line by
// line. A Handler holds no per-run state and is safe for concurrent use.
type Handler struct {
	hooks        Hooks
	pollInterval time.Duration
	flushTimeout time.Duration
}

type Option func(*Handler)

// WithHooks replaces DefaultHooks.
func WithHooks(hooks Hooks) Option {
	return func(h *Handler) {
		if hooks != nil {
			h.hooks = hooks
		}
	}
}

// WithPollInterval changes how often ExecuteContext checks for cancellation.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// WithFlushTimeout changes how long output streams may stay open after the
// process is gone. Streams can outlive the process when it passed them on to
// its own children.
func WithFlushTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.flushTimeout = d
		}
	}
}

func New(opts ...Option) *Handler {
	h := &Handler{
		hooks:        DefaultHooks{},
		pollInterval: DefaultPollInterval,
		flushTimeout: DefaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute runs setup and waits at most timeout for the process to exit,
// killing it afterwards. A non-positive timeout means DefaultTimeout.
//
// The only error returned is a validation error of setup. Failures of the
// process itself, including a failed launch, are reported in the Result.
func (h *Handler) Execute(setup Setup, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return h.run(context.Background(), setup, raceDeadline(timeout))
}

// ExecuteContext runs setup until it exits or ctx is done, in which case the
// process is killed. The process wait can't be interrupted, so ctx is polled
// every poll interval (DefaultPollInterval unless configured) and a
// cancellation takes effect up to one interval late.
func (h *Handler) ExecuteContext(ctx context.Context, setup Setup) (Result, error) {
	return h.run(ctx, setup, racePoll(ctx, h.pollInterval))
}

// ExecuteAsync validates setup and runs it in the background like
// ExecuteContext. The channel receives exactly one Result and is closed.
func (h *Handler) ExecuteAsync(ctx context.Context, setup Setup) (<-chan Result, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res, _ := h.ExecuteContext(ctx, setup)
		ch <- res
	}()
	return ch, nil
}

func (h *Handler) run(ctx context.Context, setup Setup, race raceFunc) (Result, error) {
	if err := setup.Validate(); err != nil {
		return Result{}, err
	}
	id := uuid.NewString()
	ctx = log.ContextAttrs(ctx, slog.String("run_id", id))
	rec := newRecorder(id)
	h.execute(ctx, rec, setup, race)
	return rec.freeze(), nil
}

// execute owns the child process for the whole run. Every return path leaves
// the pipes closed, the process reaped or never started, and no goroutine of
// this run alive.
func (h *Handler) execute(ctx context.Context, rec *Recorder, setup Setup, race raceFunc) {
	cmd := exec.Command(setup.Executable)
	if err := h.hooks.Configure(cmd, setup); err != nil {
		slog.WarnContext(ctx, "configuring process failed", "path", setup.Executable, "error", err)
		rec.AppendError(err.Error())
		return
	}

	p, err := openPipes()
	if err != nil {
		slog.ErrorContext(ctx, "launch failed", "path", setup.Executable, "error", err)
		rec.AppendError(err.Error())
		return
	}
	defer p.close()
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW

	started := time.Now().UTC()
	err = cmd.Start()
	p.closeWrite()
	if err != nil {
		// usually a missing executable, a missing execute bit or a
		// permission problem
		slog.DebugContext(ctx, "launch failed", "path", setup.Executable, "error", err)
		rec.AppendError(err.Error())
		return
	}
	defer func() {
		_ = cmd.Process.Release()
	}()

	rec.update(func(r *Result) {
		r.WasStarted = true
		r.Started = started
	})
	ctx = log.ContextAttrs(ctx, slog.Int("pid", cmd.Process.Pid))
	slog.DebugContext(ctx, "process started", "path", cmd.Path, "args", cmd.Args)

	drained := startDrains(ctx, p.stdoutR, p.stderrR,
		func(line string) { h.hooks.OnOutput(rec, line) },
		func(line string) { h.hooks.OnError(rec, line) },
	)
	exit := watchExit(cmd)

	if race(exit.Done()) {
		h.flush(ctx, drained, p)
		if code, ok := recordExit(rec, cmd.ProcessState, exit.err); ok {
			slog.DebugContext(ctx, "process exited", "exit_code", code, "elapsed", time.Since(started))
		} else {
			slog.ErrorContext(ctx, "process state not available", "error", exit.err)
		}
		return
	}

	// The process may have exited since the race was decided, the kill
	// error is meaningless then.
	if err := cmd.Process.Kill(); err != nil {
		slog.DebugContext(ctx, "kill returned", "error", err)
	}
	<-exit.Done()
	h.flush(ctx, drained, p)
	rec.update(func(r *Result) {
		r.Killed = true
		r.Stopped = time.Now().UTC()
	})
	slog.InfoContext(ctx, "process killed", "path", cmd.Path, "elapsed", time.Since(started))
}

// flush waits for both drains. If they don't finish within the flush timeout
// the read ends are closed, which ends the drains at once.
func (h *Handler) flush(ctx context.Context, d *drains, p *pipes) {
	timer := time.NewTimer(h.flushTimeout)
	defer timer.Stop()
	select {
	case <-d.Done():
	case <-timer.C:
		slog.WarnContext(ctx, "output streams still open: closing", "flush_timeout", h.flushTimeout)
		p.closeRead()
		<-d.Done()
	}
}

// recordExit stores a natural exit. Without a process state the exit status
// is unknown: the run is then neither completed nor killed and err is
// recorded in Errors.
func recordExit(rec *Recorder, state *os.ProcessState, err error) (int, bool) {
	if state == nil {
		if err == nil {
			err = errNoProcessState
		}
		rec.AppendError(err.Error())
		rec.update(func(r *Result) { r.Stopped = time.Now().UTC() })
		return 0, false
	}
	code := exitCode(state)
	rec.update(func(r *Result) {
		r.HasCompleted = true
		r.ExitCode = &code
		r.Stopped = time.Now().UTC()
	})
	return code, true
}

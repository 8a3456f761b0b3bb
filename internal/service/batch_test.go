package service_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/prochandler/internal/model"
	"github.com/CZERTAINLY/prochandler/internal/service"
	"github.com/CZERTAINLY/prochandler/process"
)

type memReporter struct {
	mx      sync.Mutex
	results []service.JobResult
	closed  bool
}

func (m *memReporter) Report(_ context.Context, jr service.JobResult) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.results = append(m.results, jr)
	return nil
}

func (m *memReporter) Close() error {
	m.closed = true
	return nil
}

func (m *memReporter) byName() map[string]service.JobResult {
	out := make(map[string]service.JobResult, len(m.results))
	for _, jr := range m.results {
		out[jr.Name] = jr
	}
	return out
}

func TestBatch(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	cfg := model.Config{
		Parallel: 2,
		Jobs: []model.Job{
			{Name: "hello", Executable: sh, Arguments: "-c 'echo hello'"},
			{Name: "fail", Executable: sh, Arguments: "-c 'echo oops 1>&2; exit 3'"},
			{Name: "slow", Executable: sh, Arguments: "-c 'exec sleep 5'", Timeout: "100ms"},
			{Name: "missing", Executable: "does-not-exist-prochandler"},
			{Name: "env", Executable: sh, Arguments: `-c 'echo "$GREETING"'`, Env: []process.EnvVar{{Key: "GREETING", Value: "ahoj"}}},
		},
	}

	mem := &memReporter{}
	batch, err := service.NewBatch(cfg, nil, mem)
	require.NoError(t, err)

	err = batch.Do(t.Context())
	require.Error(t, err)
	require.ErrorIs(t, err, service.ErrJobFailed)
	require.Contains(t, err.Error(), "fail: exit code 3")
	require.Contains(t, err.Error(), "slow: killed after timeout")
	require.Contains(t, err.Error(), "missing: not started")
	require.NotContains(t, err.Error(), "hello")

	require.True(t, mem.closed)
	require.Len(t, mem.results, len(cfg.Jobs))
	got := mem.byName()

	require.Equal(t, []string{"hello"}, got["hello"].Result.Output)
	require.Empty(t, got["hello"].Reason())
	require.Equal(t, []string{"oops"}, got["fail"].Result.Errors)
	require.True(t, got["slow"].Result.Killed)
	require.False(t, got["missing"].Result.WasStarted)
	require.Equal(t, []string{"ahoj"}, got["env"].Result.Output)
}

func TestBatchCanceled(t *testing.T) {
	t.Parallel()
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skipf("skipped, binary sleep not available: %v", err)
	}

	cfg := model.Config{
		Parallel: 1,
		Jobs: []model.Job{
			{Name: "a", Executable: sleep, Arguments: "5"},
			{Name: "b", Executable: sleep, Arguments: "5"},
		},
	}
	mem := &memReporter{}
	batch, err := service.NewBatch(cfg, process.New(process.WithPollInterval(10*time.Millisecond)), mem)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = batch.Do(ctx)
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)

	got := mem.byName()
	require.Len(t, got, 2)
	require.True(t, got["a"].Result.Killed)
	require.False(t, got["b"].Result.WasStarted)
	require.Equal(t, context.DeadlineExceeded.Error(), got["b"].Error)
}

func TestNewBatch(t *testing.T) {
	t.Parallel()

	_, err := service.NewBatch(model.Config{Version: 1}, nil)
	require.Error(t, err)

	_, err = service.NewBatch(model.Config{Jobs: []model.Job{
		{Name: "a", Executable: "echo"},
		{Name: "a", Executable: "echo"},
	}}, nil)
	require.ErrorIs(t, err, model.ErrDuplicateJob)
}

func TestWriteReporter(t *testing.T) {
	t.Parallel()
	code := 0
	jr := service.JobResult{
		Name: "hello",
		Result: process.Result{
			ID:           "id",
			WasStarted:   true,
			HasCompleted: true,
			ExitCode:     &code,
			Output:       []string{"hello"},
			Errors:       []string{},
		},
	}

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := service.NewWriteReporter(&buf, service.FormatYAML)
		require.NoError(t, err)
		require.NoError(t, r.Report(t.Context(), jr))
		require.NoError(t, r.Report(t.Context(), jr))
		require.NoError(t, r.Close())

		dec := yaml.NewDecoder(&buf)
		var docs int
		for {
			var got service.JobResult
			if err := dec.Decode(&got); err != nil {
				break
			}
			require.Equal(t, "hello", got.Name)
			require.Equal(t, []string{"hello"}, got.Result.Output)
			docs++
		}
		require.Equal(t, 2, docs)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := service.NewWriteReporter(&buf, service.FormatJSON)
		require.NoError(t, err)
		require.NoError(t, r.Report(t.Context(), jr))
		require.NoError(t, r.Close())
		require.Contains(t, buf.String(), `"exit_code":0`)
		require.Contains(t, buf.String(), `"output":["hello"]`)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := service.NewWriteReporter(nil, "xml")
		require.ErrorIs(t, err, service.ErrUnknownFormat)
	})
}

func TestOSRootReporter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := service.NewOSRootReporter(dir, "")
	require.NoError(t, err)

	require.NoError(t, r.Report(t.Context(), service.JobResult{Name: "a/b"}))
	require.NoError(t, r.Close())
	require.Error(t, r.Close())
	require.Error(t, r.Report(t.Context(), service.JobResult{Name: "c"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	require.True(t, strings.HasPrefix(name, "a_b-"), name)
	require.Equal(t, ".yaml", filepath.Ext(name))
}

package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRaceDeadline(t *testing.T) {
	t.Parallel()

	exited := make(chan struct{})
	close(exited)
	require.True(t, raceDeadline(time.Hour)(exited))

	start := time.Now()
	require.False(t, raceDeadline(50*time.Millisecond)(make(chan struct{})))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRacePoll(t *testing.T) {
	t.Parallel()

	t.Run("exit", func(t *testing.T) {
		t.Parallel()
		exited := make(chan struct{})
		time.AfterFunc(30*time.Millisecond, func() { close(exited) })
		require.True(t, racePoll(t.Context(), 10*time.Millisecond)(exited))
	})

	t.Run("cancel", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		time.AfterFunc(30*time.Millisecond, cancel)
		start := time.Now()
		require.False(t, racePoll(ctx, 20*time.Millisecond)(make(chan struct{})))
		elapsed := time.Since(start)
		require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
		require.Less(t, elapsed, time.Second)
	})

	t.Run("exit wins over cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		exited := make(chan struct{})
		close(exited)
		require.True(t, racePoll(ctx, time.Hour)(exited))
	})
}

package process

import (
	"context"
	"os/exec"
	"time"
)

// exitWatch observes the terminal state of a started process.
type exitWatch struct {
	done chan struct{}
	err  error
}

// watchExit waits for cmd in a dedicated goroutine. Done is closed once the
// process exited and cmd.ProcessState is available. Stdout and stderr of
// cmd must be *os.File, so Wait does not block on copying output.
func watchExit(cmd *exec.Cmd) *exitWatch {
	w := &exitWatch{done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = cmd.Wait()
	}()
	return w
}

func (w *exitWatch) Done() <-chan struct{} {
	return w.done
}

// raceFunc reports true if the process exited on its own and false if a
// deadline or a cancellation came first.
type raceFunc func(exited <-chan struct{}) bool

// raceDeadline races the exit against a single wall clock deadline.
func raceDeadline(timeout time.Duration) raceFunc {
	return func(exited <-chan struct{}) bool {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-exited:
			return true
		case <-timer.C:
			// a process exiting in the very same moment wins
			select {
			case <-exited:
				return true
			default:
				return false
			}
		}
	}
}

// racePoll waits for the exit in steps of interval and checks ctx between the
// steps. A cancellation is therefore noticed at most interval late.
func racePoll(ctx context.Context, interval time.Duration) raceFunc {
	return func(exited <-chan struct{}) bool {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-exited:
				return true
			case <-ticker.C:
				if ctx.Err() != nil {
					return false
				}
			}
		}
	}
}

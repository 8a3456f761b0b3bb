package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// lineFunc is notified about every line of a stream and then once more with
// nil when the stream is closed. nil is never an empty line.
type lineFunc func(line *string)

// readLines pushes every line read from r to notify, followed by the nil
// sentinel. Line terminators ("\n" or "\r\n") are stripped and a final
// unterminated line is delivered as well. Closing r from another goroutine
// is a regular end of stream.
func readLines(r io.Reader, notify lineFunc) error {
	defer notify(nil)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if l, ok := strings.CutSuffix(line, "\n"); ok {
				line = strings.TrimSuffix(l, "\r")
			}
			notify(&line)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			return err
		}
	}
}

// streamDrain turns the push notifications of one stream into a completion
// signal. Lines go to sink in arrival order.
type streamDrain struct {
	sink func(string)
	once sync.Once
	done chan struct{}
}

func newStreamDrain(sink func(string)) *streamDrain {
	return &streamDrain{
		sink: sink,
		done: make(chan struct{}),
	}
}

func (d *streamDrain) notify(line *string) {
	if line == nil {
		d.once.Do(func() { close(d.done) })
		return
	}
	select {
	case <-d.done:
		// closed streams don't produce lines
	default:
		d.sink(*line)
	}
}

// Done is closed once the stream has been fully consumed.
func (d *streamDrain) Done() <-chan struct{} {
	return d.done
}

// drains consumes stdout and stderr of a single run concurrently.
type drains struct {
	stdout *streamDrain
	stderr *streamDrain
	g      errgroup.Group
	done   chan struct{}
}

// startDrains spawns one reader goroutine per stream. The returned drains is
// done when both streams delivered their sentinel and both goroutines ended.
func startDrains(ctx context.Context, stdout, stderr io.Reader, onOutput, onError func(string)) *drains {
	d := &drains{
		stdout: newStreamDrain(onOutput),
		stderr: newStreamDrain(onError),
		done:   make(chan struct{}),
	}
	d.g.Go(func() error {
		return readLines(stdout, d.stdout.notify)
	})
	d.g.Go(func() error {
		return readLines(stderr, d.stderr.notify)
	})
	go func() {
		defer close(d.done)
		<-d.stdout.Done()
		<-d.stderr.Done()
		if err := d.g.Wait(); err != nil {
			slog.WarnContext(ctx, "reading process output", "error", err)
		}
	}()
	return d
}

// Done is closed when both streams are drained.
func (d *drains) Done() <-chan struct{} {
	return d.done
}

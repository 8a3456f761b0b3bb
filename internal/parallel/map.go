package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map calls mapFunc for every element of input, with at most limit calls in
// flight, and yields the results in completion order.
//
// Every element yields exactly once: mapFunc is called even for elements
// scheduled after ctx was canceled, so it must honour the context. Breaking
// the loop cancels the context passed to mapFunc and waits for the calls in
// flight.
//
//	for d, err := range parallel.Map(ctx, 4, input, f) {}
func Map[E, D any](ctx context.Context, limit int, input []E, mapFunc func(context.Context, E) (D, error)) iter.Seq2[D, error] {
	if limit <= 0 {
		limit = 1
	}
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var g errgroup.Group
		g.SetLimit(limit)
		mapped := make(chan result[D], limit)

		go func() {
			for _, entry := range input {
				g.Go(func() error {
					d, err := mapFunc(ctx, entry)
					mapped <- result[D]{d: d, e: err}
					return nil
				})
			}
			_ = g.Wait()
			close(mapped)
		}()

		stopped := false
		for r := range mapped {
			if stopped {
				continue
			}
			if !yield(r.d, r.e) {
				stopped = true
				cancel()
			}
		}
	}
}

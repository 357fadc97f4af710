package transform

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pkt.systems/agentrec/schema"
)

// MinParallelSpan is the smallest range handed to a single worker.
const MinParallelSpan = 64 * 1024

// ApplyParallel applies t to events using up to workers goroutines, each
// owning a disjoint contiguous range. Transforms that are not Elementwise
// (including chains) run serially. The result is identical to t.Apply.
func ApplyParallel(ctx context.Context, events []schema.Event, t Transform, workers int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.(Elementwise); !ok || workers <= 1 || len(events) < 2*MinParallelSpan {
		t.Apply(events)
		return nil
	}
	span := (len(events) + workers - 1) / workers
	if span < MinParallelSpan {
		span = MinParallelSpan
	}
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(events); start += span {
		end := min(start+span, len(events))
		part := events[start:end:end]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t.Apply(part)
			return nil
		})
	}
	return g.Wait()
}

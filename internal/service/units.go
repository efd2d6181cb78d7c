package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runIsolated processes units with at most concurrency in flight. A unit's error or panic is
// recorded as a failure and never stops the others.
func runIsolated[T any](
	ctx context.Context,
	logger zerolog.Logger,
	concurrency int,
	units []T,
	c *reportCollector,
	fn func(ctx context.Context, unit T) Outcome,
) {
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, unit := range units {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Str("panic", fmt.Sprint(r)).Msg("unit of work panicked")
					c.record(OutcomeFailed)
				}
			}()
			c.record(fn(ctx, unit))
			return nil
		})
	}
	_ = g.Wait()
}

package source

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/caedis/modengine/internal/manifest"
)

// defaultConcurrency is the bounded worker pool's default size (§5).
const defaultConcurrency = 3

// ResolveBatch resolves many Source descriptors concurrently, bounded by
// concurrency (0 means defaultConcurrency). Each result's index lines up
// with srcs; a per-entry resolver error does not abort the batch — it is
// recorded in errs[i] and the corresponding results[i] is the zero Result,
// consistent with §4.2's "non-fatal for the resolver" rule operating at
// entry granularity.
//
// Grounded on the errgroup+semaphore fan-out idiom used for concurrent
// metadata/provider lookups in the pack's other mod-updater tooling,
// generalized to this engine's three source kinds.
func (c *Client) ResolveBatch(ctx context.Context, srcs []manifest.Source, concurrency int) (results []Result, errs []error) {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	results = make([]Result, len(srcs))
	errs = make([]error, len(srcs))

	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, src := range srcs {
		i, src := i, src
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				errs[i] = err
				return nil
			}
			defer sem.Release(1)

			res, err := c.ResolveOne(gctx, src)
			results[i] = res
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

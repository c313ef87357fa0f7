package fetch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/gamecompat/internal/metrics"
)

// DefaultWarmConcurrency is used when Warm is given a concurrency below 1.
const DefaultWarmConcurrency = 4

// WarmStats summarises a Warm run.
type WarmStats struct {
	// Cached counts ids answered entirely from the cache.
	Cached int64
	// Fetched counts ids that needed at least one upstream call.
	Fetched int64
	// Skipped counts ids that are not valid app ids.
	Skipped int64
}

// Warm fetches every id so later lookups are served from the cache. At most
// concurrency ids are in flight at once; the rate gates still decide how fast
// requests actually leave. Warm stops early if ctx is cancelled and returns
// the counts so far together with ctx.Err().
func (o *Orchestrator) Warm(ctx context.Context, ids []int64, concurrency int) (WarmStats, error) {
	if concurrency < 1 {
		concurrency = DefaultWarmConcurrency
	}

	ctx, span := o.tracer.Start(ctx, "Warm", trace.WithAttributes(
		attribute.Int("warm.ids", len(ids)),
		attribute.Int("warm.concurrency", concurrency),
	))
	defer span.End()

	var cached, fetched, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		if id <= 0 {
			skipped.Inc()
			continue
		}
		id := id
		g.Go(func() error {
			res, err := o.FetchBoth(gctx, id)
			if err != nil {
				return err
			}
			if res.Cached() {
				cached.Inc()
				metrics.WarmItems.WithLabelValues("cache").Inc()
			} else {
				fetched.Inc()
				metrics.WarmItems.WithLabelValues("network").Inc()
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := WarmStats{Cached: cached.Load(), Fetched: fetched.Load(), Skipped: skipped.Load()}
	o.logger.Info("Cache warm-up finished",
		zap.Int("ids", len(ids)),
		zap.Int64("cached", stats.Cached),
		zap.Int64("fetched", stats.Fetched),
		zap.Int64("skipped", stats.Skipped),
		zap.Error(err))
	return stats, err
}

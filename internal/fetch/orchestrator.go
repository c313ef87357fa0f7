// Package fetch answers "what are both compatibility signals for this app"
// from the cache when it can and from the upstreams when it must.
package fetch

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"goflare.io/gamecompat/internal/cache"
	"goflare.io/gamecompat/internal/metrics"
	"goflare.io/gamecompat/internal/models"
)

const (
	TierNamespace        = "proton"
	PortabilityNamespace = "deck"

	tracerName = "goflare.io/gamecompat/fetch"
)

// TierFetcher returns the ProtonDB tier for an app.
type TierFetcher interface {
	FetchTier(ctx context.Context, id int64) (models.TierResult, error)
}

// PortabilityFetcher returns the Steam Deck verdict for an app.
type PortabilityFetcher interface {
	FetchPortability(ctx context.Context, id int64) (models.PortabilitySignal, error)
}

// Result holds both signals for one app and where each came from.
type Result struct {
	ID                int64
	Tier              models.TierResult
	Portability       models.PortabilitySignal
	TierCached        bool
	PortabilityCached bool
}

// Cached reports whether neither signal needed a network call.
func (r Result) Cached() bool {
	return r.TierCached && r.PortabilityCached
}

// Orchestrator combines the caches and upstream clients. It is safe for
// concurrent use.
type Orchestrator struct {
	tiers     TierFetcher
	deck      PortabilityFetcher
	tierCache *cache.Typed[models.TierResult]
	deckCache *cache.Typed[models.PortabilitySignal]
	ttl       time.Duration

	tierFlight singleflight.Group
	deckFlight singleflight.Group

	tracer trace.Tracer
	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets where spans are sent. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewTierCache wraps store in the tier namespace. Unknown tiers are never
// stored.
func NewTierCache(store cache.Store, logger *zap.Logger) *cache.Typed[models.TierResult] {
	return cache.NewTyped[models.TierResult](store, TierNamespace,
		cache.WithAbsent(func(r models.TierResult) bool { return !r.Tier.Known() }),
		cache.WithTypedLogger[models.TierResult](logger))
}

// NewPortabilityCache wraps store in the portability namespace. Unknown
// verdicts are never stored.
func NewPortabilityCache(store cache.Store, logger *zap.Logger) *cache.Typed[models.PortabilitySignal] {
	return cache.NewTyped[models.PortabilitySignal](store, PortabilityNamespace,
		cache.WithAbsent(func(p models.PortabilitySignal) bool { return !p.Known() }),
		cache.WithTypedLogger[models.PortabilitySignal](logger))
}

// New creates an Orchestrator. Entries older than ttl are refetched.
func New(
	tiers TierFetcher,
	deck PortabilityFetcher,
	tierCache *cache.Typed[models.TierResult],
	deckCache *cache.Typed[models.PortabilitySignal],
	ttl time.Duration,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		tiers:     tiers,
		deck:      deck,
		tierCache: tierCache,
		deckCache: deckCache,
		ttl:       ttl,
		tracer:    otel.Tracer(tracerName),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchBoth returns both signals for id, looking them up concurrently. Upstream
// failures show up as Unknown values; the error is non-nil only when ctx is
// cancelled.
func (o *Orchestrator) FetchBoth(ctx context.Context, id int64) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "FetchBoth", trace.WithAttributes(attribute.Int64("app.id", id)))
	defer span.End()

	res := Result{ID: id}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.Tier, res.TierCached, err = o.tier(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		res.Portability, res.PortabilityCached, err = o.portability(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", res.Cached()))
	o.logger.Debug("Fetched compatibility",
		zap.Int64("app_id", id),
		zap.Stringer("tier", res.Tier.Tier),
		zap.Stringer("portability", res.Portability),
		zap.Bool("cached", res.Cached()))
	return res, nil
}

// PeekTier returns the cached tier for id without fetching.
func (o *Orchestrator) PeekTier(id int64) (models.TierResult, bool) {
	return o.tierCache.TryGet(id, o.ttl)
}

// PeekPortability returns the cached verdict for id without fetching.
func (o *Orchestrator) PeekPortability(id int64) (models.PortabilitySignal, bool) {
	return o.deckCache.TryGet(id, o.ttl)
}

func (o *Orchestrator) tier(ctx context.Context, id int64) (models.TierResult, bool, error) {
	ctx, span := o.tracer.Start(ctx, "fetch.tier")
	defer span.End()

	if v, ok := o.tierCache.TryGet(id, o.ttl); ok {
		metrics.ObserveLookup(TierNamespace, true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, true, nil
	}
	metrics.ObserveLookup(TierNamespace, false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err := shared(ctx, &o.tierFlight, id, func(ctx context.Context) (models.TierResult, error) {
		if v, ok := o.tierCache.TryGet(id, o.ttl); ok {
			return v, nil
		}
		v, err := o.tiers.FetchTier(ctx, id)
		if err != nil {
			return v, err
		}
		o.tierCache.Set(id, v)
		return v, nil
	})
	return v, false, err
}

func (o *Orchestrator) portability(ctx context.Context, id int64) (models.PortabilitySignal, bool, error) {
	ctx, span := o.tracer.Start(ctx, "fetch.portability")
	defer span.End()

	if v, ok := o.deckCache.TryGet(id, o.ttl); ok {
		metrics.ObserveLookup(PortabilityNamespace, true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, true, nil
	}
	metrics.ObserveLookup(PortabilityNamespace, false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err := shared(ctx, &o.deckFlight, id, func(ctx context.Context) (models.PortabilitySignal, error) {
		if v, ok := o.deckCache.TryGet(id, o.ttl); ok {
			return v, nil
		}
		v, err := o.deck.FetchPortability(ctx, id)
		if err != nil {
			return v, err
		}
		o.deckCache.Set(id, v)
		return v, nil
	})
	return v, false, err
}

// shared runs fn once per id across concurrent callers. fn runs with the
// context of whichever caller started it; if that caller is cancelled, the
// others start a new call with their own context.
func shared[V any](ctx context.Context, g *singleflight.Group, id int64, fn func(context.Context) (V, error)) (V, error) {
	key := strconv.FormatInt(id, 10)
	for {
		ch := g.DoChan(key, func() (any, error) {
			return fn(ctx)
		})

		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case r := <-ch:
			if r.Err != nil && ctx.Err() == nil && isCancellation(r.Err) {
				continue
			}
			v, _ := r.Val.(V)
			return v, r.Err
		}
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Package gamecompat looks up ProtonDB tiers and Steam Deck compatibility
// verdicts for Steam apps. Answers are cached, requests to each service are
// rate limited, transient failures are retried and a failing service is
// short-circuited. Lookups never fail because of an upstream problem; they
// return Unknown instead.
package gamecompat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/cache"
	"goflare.io/gamecompat/internal/config"
	"goflare.io/gamecompat/internal/fetch"
	"goflare.io/gamecompat/internal/metrics"
	"goflare.io/gamecompat/internal/models"
	"goflare.io/gamecompat/internal/ratelimit"
	"goflare.io/gamecompat/internal/resilience"
	"goflare.io/gamecompat/internal/upstream"
	"goflare.io/gamecompat/pkg/serialization"
)

// Client 定義 gamecompat 庫的主要結構體
type Client struct {
	orchestrator *fetch.Orchestrator
	store        cache.Store
	httpClient   *http.Client

	protonGate *ratelimit.Gate
	deckGate   *ratelimit.Gate
	protonPipe *resilience.Pipeline
	deckPipe   *resilience.Pipeline

	closed *atomic.Bool
	logger *zap.Logger
}

// New 初始化 Client，接受多個配置選項
func New(opts ...Option) (*Client, error) {
	cfgOpts := make([]config.Option, 0, len(opts))
	for _, opt := range opts {
		cfgOpts = append(cfgOpts, config.Option(opt))
	}

	// 初始化配置
	cfg, err := config.NewConfig(cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	logger := cfg.Logger

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		store:      store,
		httpClient: httpClient,
		protonGate: ratelimit.NewGate(upstream.ProtonDBName, cfg.ProtonDB.Interval, logger),
		deckGate:   ratelimit.NewGate(upstream.SteamDeckName, cfg.SteamDeck.Interval, logger),
		closed:     atomic.NewBool(false),
		logger:     logger,
	}

	if c.protonPipe, err = newPipeline(cfg, upstream.ProtonDBName); err != nil {
		return nil, err
	}
	if c.deckPipe, err = newPipeline(cfg, upstream.SteamDeckName); err != nil {
		return nil, err
	}

	clientOpts := []upstream.ClientOption{
		upstream.WithHTTPClient(httpClient),
		upstream.WithUserAgent(cfg.UserAgent),
		upstream.WithLogger(logger),
		upstream.WithObserver(func(name string, outcome upstream.Outcome, elapsed time.Duration) {
			metrics.ObserveFetch(name, string(outcome), elapsed)
		}),
	}
	protonClient, err := upstream.NewClient(upstream.ProtonDBName, c.protonGate, c.protonPipe, clientOpts...)
	if err != nil {
		return nil, err
	}
	deckClient, err := upstream.NewClient(upstream.SteamDeckName, c.deckGate, c.deckPipe, clientOpts...)
	if err != nil {
		return nil, err
	}

	c.orchestrator = fetch.New(
		upstream.NewProtonDB(protonClient, cfg.ProtonDB.URL, cfg.ProtonDB.SiteURL),
		upstream.NewSteamDeck(deckClient, cfg.SteamDeck.URL),
		fetch.NewTierCache(store, logger),
		fetch.NewPortabilityCache(store, logger),
		cfg.CacheTTL,
		fetch.WithLogger(logger),
	)

	logger.Info("gamecompat initialized",
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("protondb_interval", cfg.ProtonDB.Interval),
		zap.Duration("steamdeck_interval", cfg.SteamDeck.Interval))
	return c, nil
}

func newStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case cache.BackendMemory:
		return cache.NewMemory(cfg.Logger), nil
	case cache.BackendBounded:
		return cache.NewBounded(cfg.BoundedMaxEntries, cfg.Logger)
	default:
		codec, err := serialization.Lookup(cfg.CacheCodec)
		if err != nil {
			return nil, err
		}
		return cache.NewFile(cfg.CacheDir, cache.WithCodec(codec), cache.WithFileLogger(cfg.Logger))
	}
}

func newPipeline(cfg *config.Config, name string) (*resilience.Pipeline, error) {
	s := cfg.PipelineSettings(name)
	s.OnStateChange = func(name string, _, to gobreaker.State) {
		metrics.SetBreakerState(name, to)
	}
	s.OnRetry = func(name string, _ int, _ time.Duration, _ error) {
		metrics.ObserveRetry(name)
	}
	p, err := resilience.New(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pipeline: %w", name, err)
	}
	metrics.SetBreakerState(name, p.State())
	return p, nil
}

// FetchBoth 獲取兩個相容性訊號. Upstream failures come back as Unknown values;
// the error is non-nil only on cancellation or after Close.
func (c *Client) FetchBoth(ctx context.Context, appID int64) (Result, error) {
	if c.closed.Load() {
		return Result{ID: appID}, ErrClosed
	}
	return c.orchestrator.FetchBoth(ctx, appID)
}

// PeekTier 只查快取, never touches the network.
func (c *Client) PeekTier(appID int64) (TierResult, bool) {
	if c.closed.Load() {
		return TierResult{}, false
	}
	return c.orchestrator.PeekTier(appID)
}

// PeekPortability 只查快取, never touches the network.
func (c *Client) PeekPortability(appID int64) (PortabilitySignal, bool) {
	if c.closed.Load() {
		return PortabilityUnknown, false
	}
	return c.orchestrator.PeekPortability(appID)
}

// Warm 預熱快取 with at most concurrency lookups in flight.
func (c *Client) Warm(ctx context.Context, appIDs []int64, concurrency int) (WarmStats, error) {
	if c.closed.Load() {
		return WarmStats{}, ErrClosed
	}
	return c.orchestrator.Warm(ctx, appIDs, concurrency)
}

// ClearCache 清空所有快取
func (c *Client) ClearCache() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.store.Clear()
	c.logger.Info("Cache cleared")
	return nil
}

// Stats 返回快取、速率閘門與熔斷器的狀態
func (c *Client) Stats() Stats {
	return Stats{
		Cache:            c.store.Stats(),
		ProtonDBGate:     c.protonGate.Stats(),
		SteamDeckGate:    c.deckGate.Stats(),
		ProtonDBBreaker:  c.protonPipe.State().String(),
		SteamDeckBreaker: c.deckPipe.State().String(),
	}
}

// Close 關閉 Client，釋放資源. Further calls return ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if b, ok := c.store.(*cache.Bounded); ok {
		b.Close()
	}
	c.httpClient.CloseIdleConnections()
	_ = c.logger.Sync()
	return nil
}

// Stats is a point-in-time view of the client internals.
type Stats struct {
	Cache            models.Snapshot
	ProtonDBGate     ratelimit.Stats
	SteamDeckGate    ratelimit.Stats
	ProtonDBBreaker  string
	SteamDeckBreaker string
}

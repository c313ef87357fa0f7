package gamecompat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type fakeServices struct {
	server      *httptest.Server
	protonHits  *atomic.Int64
	deckHits    *atomic.Int64
	protonReply string
	deckReply   string
	status      int
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	f := &fakeServices{
		protonHits:  atomic.NewInt64(0),
		deckHits:    atomic.NewInt64(0),
		protonReply: `{"tier":"platinum","bestReportedTier":"platinum","total":512}`,
		deckReply:   `{"success":1,"results":{"appid":570,"resolved_category":3}}`,
		status:      http.StatusOK,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/summaries/"):
			f.protonHits.Inc()
			w.WriteHeader(f.status)
			_, _ = fmt.Fprint(w, f.protonReply)
		case r.URL.Path == "/deck":
			f.deckHits.Inc()
			w.WriteHeader(f.status)
			_, _ = fmt.Fprint(w, f.deckReply)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServices) options(extra ...Option) []Option {
	opts := []Option{
		WithLogger(zap.NewNop()),
		WithProtonDB(f.server.URL+"/summaries/{id}.json", "https://site.test"),
		WithSteamDeck(f.server.URL + "/deck?nAppID={id}"),
		WithCacheBackend("memory"),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
		WithRequestTimeout(2 * time.Second),
	}
	return append(opts, extra...)
}

func TestClientFetchBothCachesAnswers(t *testing.T) {
	f := newFakeServices(t)
	c, err := New(f.options()...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	res, err := c.FetchBoth(ctx, 570)
	require.NoError(t, err)
	assert.Equal(t, TierPlatinum, res.Tier.Tier)
	assert.Equal(t, "https://site.test/app/570", res.Tier.URL)
	assert.Equal(t, PortabilityVerified, res.Portability)
	assert.False(t, res.Cached())

	res, err = c.FetchBoth(ctx, 570)
	require.NoError(t, err)
	assert.True(t, res.Cached())
	assert.Equal(t, int64(1), f.protonHits.Load())
	assert.Equal(t, int64(1), f.deckHits.Load())

	tier, ok := c.PeekTier(570)
	assert.True(t, ok)
	assert.Equal(t, TierPlatinum, tier.Tier)
	deck, ok := c.PeekPortability(570)
	assert.True(t, ok)
	assert.Equal(t, PortabilityVerified, deck)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Cache.Writes)
	assert.Equal(t, int64(1), stats.ProtonDBGate.Admitted)
	assert.Equal(t, "closed", stats.ProtonDBBreaker)
}

func TestClientUpstreamFailureYieldsUnknown(t *testing.T) {
	f := newFakeServices(t)
	f.status = http.StatusNotFound
	c, err := New(f.options()...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	res, err := c.FetchBoth(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, TierUnknown, res.Tier.Tier)
	assert.Equal(t, "https://site.test/app/42", res.Tier.URL)
	assert.Equal(t, PortabilityUnknown, res.Portability)

	_, ok := c.PeekTier(42)
	assert.False(t, ok)
	assert.Equal(t, int64(1), f.protonHits.Load())
}

func TestClientFileBackendSurvivesRestart(t *testing.T) {
	f := newFakeServices(t)
	dir := t.TempDir()
	opts := f.options(WithCacheBackend("file"), WithCacheDir(dir))

	first, err := New(opts...)
	require.NoError(t, err)
	_, err = first.FetchBoth(context.Background(), 570)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(opts...)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	res, err := second.FetchBoth(context.Background(), 570)
	require.NoError(t, err)
	assert.True(t, res.Cached())
	assert.Equal(t, TierPlatinum, res.Tier.Tier)
	assert.Equal(t, int64(1), f.protonHits.Load())
	assert.Equal(t, int64(1), f.deckHits.Load())
}

func TestClientBoundedBackend(t *testing.T) {
	f := newFakeServices(t)
	c, err := New(f.options(WithCacheBackend("bounded"), WithBoundedMaxEntries(64))...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.FetchBoth(context.Background(), 10)
	require.NoError(t, err)
	res, err := c.FetchBoth(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, res.Cached())

	require.NoError(t, c.ClearCache())
	_, ok := c.PeekTier(10)
	assert.False(t, ok)
}

func TestClientWarm(t *testing.T) {
	f := newFakeServices(t)
	c, err := New(f.options()...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	stats, err := c.Warm(context.Background(), []int64{1, 2, 0, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(3), stats.Cached+stats.Fetched)
	assert.Equal(t, int64(2), f.protonHits.Load())
}

func TestClientInvalidConfig(t *testing.T) {
	_, err := New(WithLogger(zap.NewNop()), WithCacheBackend("redis"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithLogger(zap.NewNop()), WithCacheTTL(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClientClosed(t *testing.T) {
	f := newFakeServices(t)
	c, err := New(f.options()...)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.FetchBoth(context.Background(), 570)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Warm(context.Background(), []int64{570}, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.ClearCache(), ErrClosed)
	assert.ErrorIs(t, c.Close(), ErrClosed)
	assert.Zero(t, f.protonHits.Load())
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierGold, ParseTier(" Gold "))
	assert.Equal(t, TierUnknown, ParseTier("pending"))
	assert.True(t, TierBorked > TierUnknown)
}

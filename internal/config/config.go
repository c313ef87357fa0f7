package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goflare.io/gamecompat/internal/cache"
	"goflare.io/gamecompat/internal/resilience"
	"goflare.io/gamecompat/internal/upstream"
	"goflare.io/gamecompat/pkg/serialization"
)

// EnvPrefix 環境變數前綴 (prefix of every environment variable)
const EnvPrefix = "GAMECOMPAT_"

// MinInterval is the smallest per-upstream request spacing the config accepts.
const MinInterval = 100 * time.Millisecond

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config 抓取層的配置 (configuration of the fetch layer)
type Config struct {
	CacheTTL          time.Duration
	CacheBackend      string
	CacheDir          string
	CacheCodec        string
	BoundedMaxEntries int64

	ProtonDB  UpstreamConfig
	SteamDeck UpstreamConfig

	Resilience ResilienceConfig

	UserAgent  string
	LogLevel   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// UpstreamConfig 單一上游設定 (settings for one upstream)
type UpstreamConfig struct {
	Interval time.Duration
	URL      string
	// SiteURL is only used by ProtonDB for fallback links.
	SiteURL string
}

// ResilienceConfig 重試與熔斷器設定 (retry and circuit breaker settings)
type ResilienceConfig struct {
	RequestTimeout    time.Duration
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	FailureRatio      float64
	MinimumThroughput int64
	SamplingDuration  time.Duration
	BreakDuration     time.Duration
}

// Option 函數類型
type Option func(*Config) error

// envSettings mirrors the environment surface. Units follow the variable
// names: minutes for the TTL, milliseconds for the intervals. Fields stay nil
// when their variable is not set.
type envSettings struct {
	CacheTTLMinutes     *int           `env:"CACHE_TTL"`
	CacheBackend        *string        `env:"CACHE_BACKEND"`
	CacheDir            *string        `env:"CACHE_DIR"`
	CacheCodec          *string        `env:"CACHE_CODEC"`
	CacheMaxEntries     *int64         `env:"CACHE_MAX_ENTRIES"`
	ProtonDBIntervalMS  *int           `env:"PROTONDB_INTERVAL_MS"`
	SteamDeckIntervalMS *int           `env:"STEAMDECK_INTERVAL_MS"`
	ProtonDBURL         *string        `env:"PROTONDB_URL"`
	ProtonDBSiteURL     *string        `env:"PROTONDB_SITE_URL"`
	SteamDeckURL        *string        `env:"STEAMDECK_URL"`
	RequestTimeout      *time.Duration `env:"REQUEST_TIMEOUT"`
	MaxAttempts         *int           `env:"MAX_ATTEMPTS"`
	RetryBaseDelay      *time.Duration `env:"RETRY_BASE_DELAY"`
	RetryMaxDelay       *time.Duration `env:"RETRY_MAX_DELAY"`
	FailureRatio        *float64       `env:"BREAKER_FAILURE_RATIO"`
	MinimumThroughput   *int64         `env:"BREAKER_MIN_THROUGHPUT"`
	SamplingDuration    *time.Duration `env:"BREAKER_SAMPLING"`
	BreakDuration       *time.Duration `env:"BREAKER_BREAK"`
	UserAgent           *string        `env:"USER_AGENT"`
	LogLevel            *string        `env:"LOG_LEVEL"`
}

// WithEnvironment 從環境變數讀取設定. A nil map reads the process environment.
// Only variables that are set override the current values.
func WithEnvironment(environ map[string]string) Option {
	return func(c *Config) error {
		var s envSettings
		opts := env.Options{Prefix: EnvPrefix}
		if environ != nil {
			opts.Environment = environ
		}
		if err := env.ParseWithOptions(&s, opts); err != nil {
			return fmt.Errorf("%w: parse env: %w", ErrInvalid, err)
		}
		c.apply(s)
		return nil
	}
}

func (c *Config) apply(s envSettings) {
	if s.CacheTTLMinutes != nil {
		c.CacheTTL = time.Duration(*s.CacheTTLMinutes) * time.Minute
	}
	if s.ProtonDBIntervalMS != nil {
		c.ProtonDB.Interval = time.Duration(*s.ProtonDBIntervalMS) * time.Millisecond
	}
	if s.SteamDeckIntervalMS != nil {
		c.SteamDeck.Interval = time.Duration(*s.SteamDeckIntervalMS) * time.Millisecond
	}
	set(&c.CacheBackend, s.CacheBackend)
	set(&c.CacheDir, s.CacheDir)
	set(&c.CacheCodec, s.CacheCodec)
	set(&c.BoundedMaxEntries, s.CacheMaxEntries)
	set(&c.ProtonDB.URL, s.ProtonDBURL)
	set(&c.ProtonDB.SiteURL, s.ProtonDBSiteURL)
	set(&c.SteamDeck.URL, s.SteamDeckURL)
	set(&c.Resilience.RequestTimeout, s.RequestTimeout)
	set(&c.Resilience.MaxAttempts, s.MaxAttempts)
	set(&c.Resilience.RetryBaseDelay, s.RetryBaseDelay)
	set(&c.Resilience.RetryMaxDelay, s.RetryMaxDelay)
	set(&c.Resilience.FailureRatio, s.FailureRatio)
	set(&c.Resilience.MinimumThroughput, s.MinimumThroughput)
	set(&c.Resilience.SamplingDuration, s.SamplingDuration)
	set(&c.Resilience.BreakDuration, s.BreakDuration)
	set(&c.UserAgent, s.UserAgent)
	set(&c.LogLevel, s.LogLevel)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// finalize 最終檢查 (clamps intervals, validates and builds the logger)
func (c *Config) finalize() error {
	c.ProtonDB.Interval = max(c.ProtonDB.Interval, MinInterval)
	c.SteamDeck.Interval = max(c.SteamDeck.Interval, MinInterval)
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	c.CacheCodec = strings.ToLower(strings.TrimSpace(c.CacheCodec))

	if err := c.Validate(); err != nil {
		return err
	}

	if c.Logger == nil {
		logger, err := NewLogger(c.LogLevel)
		if err != nil {
			return err
		}
		c.Logger = logger
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.CacheTTL < 0:
		return fmt.Errorf("%w: cache TTL must not be negative", ErrInvalid)
	case c.Resilience.FailureRatio <= 0 || c.Resilience.FailureRatio > 1:
		return fmt.Errorf("%w: failure ratio must be in (0,1], got %v", ErrInvalid, c.Resilience.FailureRatio)
	case c.Resilience.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalid)
	case c.Resilience.MinimumThroughput < 1:
		return fmt.Errorf("%w: minimum throughput must be at least 1", ErrInvalid)
	case c.Resilience.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalid)
	case c.Resilience.RetryBaseDelay < time.Millisecond:
		return fmt.Errorf("%w: retry base delay must be at least 1ms", ErrInvalid)
	case c.Resilience.RetryMaxDelay < c.Resilience.RetryBaseDelay:
		return fmt.Errorf("%w: retry max delay must not be below the base delay", ErrInvalid)
	case c.Resilience.SamplingDuration <= 0 || c.Resilience.BreakDuration <= 0:
		return fmt.Errorf("%w: breaker durations must be positive", ErrInvalid)
	}

	switch c.CacheBackend {
	case cache.BackendFile:
		if c.CacheDir == "" {
			return fmt.Errorf("%w: cache directory is required for the file backend", ErrInvalid)
		}
	case cache.BackendMemory:
	case cache.BackendBounded:
		if c.BoundedMaxEntries <= 0 {
			return fmt.Errorf("%w: bounded cache needs a positive entry limit", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.CacheBackend)
	}

	if _, err := serialization.Lookup(c.CacheCodec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	for name, tmpl := range map[string]string{"ProtonDB URL": c.ProtonDB.URL, "Steam Deck URL": c.SteamDeck.URL} {
		if !upstream.HasPlaceholder(tmpl) {
			return fmt.Errorf("%w: %s %q has no {id} placeholder", ErrInvalid, name, tmpl)
		}
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// PipelineSettings returns the resilience settings for the named upstream.
func (c *Config) PipelineSettings(name string) resilience.Settings {
	return resilience.Settings{
		Name:              name,
		Timeout:           c.Resilience.RequestTimeout,
		MaxAttempts:       c.Resilience.MaxAttempts,
		BaseDelay:         c.Resilience.RetryBaseDelay,
		MaxDelay:          c.Resilience.RetryMaxDelay,
		Factor:            2,
		Jitter:            0.5,
		FailureRatio:      c.Resilience.FailureRatio,
		MinimumThroughput: c.Resilience.MinimumThroughput,
		SamplingDuration:  c.Resilience.SamplingDuration,
		BreakDuration:     c.Resilience.BreakDuration,
		Logger:            c.Logger,
	}
}

// NewLogger 依等級建立 production logger
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

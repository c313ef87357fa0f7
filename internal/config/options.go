package config

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithHTTPClient 設置 HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.HTTPClient = hc
		return nil
	}
}

// WithCacheTTL 設置快取有效期
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		c.CacheTTL = ttl
		return nil
	}
}

// WithCacheBackend selects the file, memory or bounded backend.
func WithCacheBackend(backend string) Option {
	return func(c *Config) error {
		c.CacheBackend = backend
		return nil
	}
}

// WithCacheDir 設置快取目錄
func WithCacheDir(dir string) Option {
	return func(c *Config) error {
		c.CacheDir = dir
		return nil
	}
}

// WithCacheCodec selects the entry codec of the file backend.
func WithCacheCodec(codec string) Option {
	return func(c *Config) error {
		c.CacheCodec = codec
		return nil
	}
}

// WithBoundedMaxEntries 設置 bounded 快取上限
func WithBoundedMaxEntries(n int64) Option {
	return func(c *Config) error {
		c.BoundedMaxEntries = n
		return nil
	}
}

// WithProtonDB overrides the ProtonDB endpoint template and site URL. Empty
// values keep the current setting.
func WithProtonDB(urlTemplate, siteURL string) Option {
	return func(c *Config) error {
		if urlTemplate != "" {
			c.ProtonDB.URL = urlTemplate
		}
		if siteURL != "" {
			c.ProtonDB.SiteURL = siteURL
		}
		return nil
	}
}

// WithSteamDeck overrides the Steam Deck endpoint template.
func WithSteamDeck(urlTemplate string) Option {
	return func(c *Config) error {
		if urlTemplate != "" {
			c.SteamDeck.URL = urlTemplate
		}
		return nil
	}
}

// WithIntervals 設置每個上游的最小請求間隔. Values below MinInterval are raised to it.
func WithIntervals(protonDB, steamDeck time.Duration) Option {
	return func(c *Config) error {
		c.ProtonDB.Interval = protonDB
		c.SteamDeck.Interval = steamDeck
		return nil
	}
}

// WithRequestTimeout 設置單次請求超時
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.RequestTimeout = d
		return nil
	}
}

// WithRetry 設置重試策略
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.MaxAttempts = maxAttempts
		c.Resilience.RetryBaseDelay = baseDelay
		c.Resilience.RetryMaxDelay = maxDelay
		return nil
	}
}

// WithBreaker 設置熔斷器
func WithBreaker(failureRatio float64, minimumThroughput int64, sampling, breakDuration time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.FailureRatio = failureRatio
		c.Resilience.MinimumThroughput = minimumThroughput
		c.Resilience.SamplingDuration = sampling
		c.Resilience.BreakDuration = breakDuration
		return nil
	}
}

// WithUserAgent 設置 User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Config) error {
		if ua == "" {
			return errors.New("user agent must not be empty")
		}
		c.UserAgent = ua
		return nil
	}
}

// WithLogLevel sets the level of the logger built when none is supplied.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

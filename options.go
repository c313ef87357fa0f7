package gamecompat

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/config"
)

// Option 定義配置選項的函數類型
type Option func(*config.Config) error

// FromEnvironment 從 GAMECOMPAT_* 環境變數讀取設定. Options after it override the environment.
func FromEnvironment() Option {
	return Option(config.WithEnvironment(nil))
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return Option(config.WithLogger(logger))
}

// WithLogLevel 設置日誌等級 (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return Option(config.WithLogLevel(level))
}

// WithHTTPClient 設置共用的 HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return Option(config.WithHTTPClient(hc))
}

// WithUserAgent 設置請求的 User-Agent
func WithUserAgent(ua string) Option {
	return Option(config.WithUserAgent(ua))
}

// WithCacheTTL 設置快取有效期
func WithCacheTTL(ttl time.Duration) Option {
	return Option(config.WithCacheTTL(ttl))
}

// WithCacheBackend selects "file", "memory" or "bounded".
func WithCacheBackend(backend string) Option {
	return Option(config.WithCacheBackend(backend))
}

// WithCacheDir 設置檔案快取目錄
func WithCacheDir(dir string) Option {
	return Option(config.WithCacheDir(dir))
}

// WithCacheCodec selects the on-disk record codec, "json" or "gob".
func WithCacheCodec(codec string) Option {
	return Option(config.WithCacheCodec(codec))
}

// WithBoundedMaxEntries caps the bounded backend.
func WithBoundedMaxEntries(n int64) Option {
	return Option(config.WithBoundedMaxEntries(n))
}

// WithProtonDB overrides the summary endpoint template and the public site URL.
func WithProtonDB(urlTemplate, siteURL string) Option {
	return Option(config.WithProtonDB(urlTemplate, siteURL))
}

// WithSteamDeck overrides the compatibility report endpoint template.
func WithSteamDeck(urlTemplate string) Option {
	return Option(config.WithSteamDeck(urlTemplate))
}

// WithIntervals 設置兩個上游的最小請求間隔
func WithIntervals(protonDB, steamDeck time.Duration) Option {
	return Option(config.WithIntervals(protonDB, steamDeck))
}

// WithRequestTimeout 設置單次請求超時
func WithRequestTimeout(d time.Duration) Option {
	return Option(config.WithRequestTimeout(d))
}

// WithRetry 設置重試策略
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return Option(config.WithRetry(maxAttempts, baseDelay, maxDelay))
}

// WithBreaker 設置熔斷器參數
func WithBreaker(failureRatio float64, minimumThroughput int64, sampling, breakDuration time.Duration) Option {
	return Option(config.WithBreaker(failureRatio, minimumThroughput, sampling, breakDuration))
}

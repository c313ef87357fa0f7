// Package upstream talks to the two compatibility services. Every fetch goes
// through the upstream's rate gate and resilience pipeline, and every failure
// other than cancellation degrades to an Unknown result.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/ratelimit"
	"goflare.io/gamecompat/internal/resilience"
	"goflare.io/gamecompat/internal/utils"
)

// MaxBodySize caps how much of a response body is read.
const MaxBodySize = 1 << 20

const defaultUserAgent = "gamecompat/1.0"

// Outcome classifies how a single fetch ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeTransient   Outcome = "transient"
	OutcomePermanent   Outcome = "permanent"
	OutcomeCircuitOpen Outcome = "circuit_open"
	OutcomeParseError  Outcome = "parse_error"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeInvalidID   Outcome = "invalid_id"
)

// Observer is told about every finished fetch.
type Observer func(upstream string, outcome Outcome, elapsed time.Duration)

var errBodyTooLarge = errors.New("response body too large")

// Client issues GET requests for one upstream.
type Client struct {
	name      string
	http      *http.Client
	gate      *ratelimit.Gate
	pipeline  *resilience.Pipeline
	userAgent string
	observer  Observer
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithObserver registers a callback for fetch outcomes.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. gate and pipeline must belong to this upstream
// alone.
func NewClient(name string, gate *ratelimit.Gate, pipeline *resilience.Pipeline, opts ...ClientOption) (*Client, error) {
	if gate == nil {
		return nil, fmt.Errorf("%s: rate gate is required", name)
	}
	if pipeline == nil {
		return nil, fmt.Errorf("%s: resilience pipeline is required", name)
	}

	c := &Client{
		name:      name,
		http:      &http.Client{},
		gate:      gate,
		pipeline:  pipeline,
		userAgent: defaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("upstream", name))
	return c, nil
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// get fetches url and returns the body of a 2xx response. A non-OK outcome
// comes with a nil body. The error is non-nil only when ctx was cancelled.
func (c *Client) get(ctx context.Context, url string) ([]byte, Outcome, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, OutcomeCanceled, err
	}

	resp, err := c.pipeline.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, OutcomeCanceled, ctxErr
		}
		if resilience.IsCircuitOpen(err) {
			return nil, OutcomeCircuitOpen, nil
		}
		c.logger.Debug("Request failed", zap.String("url", url), zap.Error(err))
		return nil, OutcomeTransient, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Unexpected status", zap.String("url", url), zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, OutcomeTransient, nil
		}
		return nil, OutcomePermanent, nil
	}

	body, err := readBody(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, OutcomeCanceled, ctxErr
		}
		c.logger.Debug("Failed to read body", zap.String("url", url), zap.Error(err))
		if errors.Is(err, errBodyTooLarge) {
			return nil, OutcomeParseError, nil
		}
		return nil, OutcomeTransient, nil
	}

	c.logger.Debug("Response received", zap.String("url", url), zap.String("body", utils.Truncate(string(body), 200)))
	return body, OutcomeOK, nil
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodySize {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func (c *Client) report(id int64, outcome Outcome, start time.Time) {
	elapsed := time.Since(start)
	if outcome == OutcomeOK {
		c.logger.Debug("Fetch finished", zap.Int64("app_id", id), zap.Duration("elapsed", elapsed))
	} else {
		c.logger.Info("Fetch degraded", zap.Int64("app_id", id),
			zap.String("outcome", string(outcome)), zap.Duration("elapsed", elapsed))
	}
	if c.observer != nil {
		c.observer(c.name, outcome, elapsed)
	}
}

// ExpandURL substitutes id into template. The placeholder may be written as
// {id}, {0} or %d.
func ExpandURL(template string, id int64) string {
	s := strconv.FormatInt(id, 10)
	for _, ph := range []string{"{id}", "{0}", "%d"} {
		if strings.Contains(template, ph) {
			return strings.Replace(template, ph, s, 1)
		}
	}
	return template
}

// HasPlaceholder reports whether template contains an id placeholder.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, "{id}") || strings.Contains(template, "{0}") || strings.Contains(template, "%d")
}

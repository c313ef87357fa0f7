package upstream

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/models"
)

const (
	// DefaultProtonDBURL is the ProtonDB summary endpoint.
	DefaultProtonDBURL = "https://www.protondb.com/api/v1/reports/summaries/{id}.json"
	// DefaultProtonDBSite is the host used for fallback profile URLs.
	DefaultProtonDBSite = "https://www.protondb.com"

	ProtonDBName = "protondb"
)

// ProtonDB fetches compatibility tiers.
type ProtonDB struct {
	client      *Client
	urlTemplate string
	siteURL     string
}

// NewProtonDB creates a tier client. Empty arguments select the defaults.
func NewProtonDB(client *Client, urlTemplate, siteURL string) *ProtonDB {
	if urlTemplate == "" {
		urlTemplate = DefaultProtonDBURL
	}
	if siteURL == "" {
		siteURL = DefaultProtonDBSite
	}
	return &ProtonDB{
		client:      client,
		urlTemplate: urlTemplate,
		siteURL:     strings.TrimRight(siteURL, "/"),
	}
}

// FallbackURL is the ProtonDB page for id.
func (p *ProtonDB) FallbackURL(id int64) string {
	return p.siteURL + "/app/" + strconv.FormatInt(id, 10)
}

// FetchTier returns the tier for id. Any failure yields TierUnknown with the
// fallback URL. The error is non-nil only if ctx is cancelled.
func (p *ProtonDB) FetchTier(ctx context.Context, id int64) (models.TierResult, error) {
	start := time.Now()
	fallback := models.UnknownTier(p.FallbackURL(id))

	if id <= 0 {
		p.client.report(id, OutcomeInvalidID, start)
		return fallback, nil
	}

	body, outcome, err := p.client.get(ctx, ExpandURL(p.urlTemplate, id))
	if outcome != OutcomeOK {
		p.client.report(id, outcome, start)
		return fallback, err
	}

	result, ok := ParseTierSummary(body)
	if !ok {
		outcome = OutcomeParseError
	}
	if result.URL == "" {
		result.URL = fallback.URL
	}
	p.client.logger.Debug("Parsed tier", zap.Int64("app_id", id), zap.Stringer("tier", result.Tier))
	p.client.report(id, outcome, start)
	return result, nil
}

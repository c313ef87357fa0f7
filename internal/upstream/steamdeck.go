package upstream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/models"
)

const (
	// DefaultSteamDeckURL is the Steam store Deck compatibility report.
	DefaultSteamDeckURL = "https://store.steampowered.com/saleaction/ajaxgetdeckappcompatibilityreport?nAppID={id}"

	SteamDeckName = "steamdeck"
)

// SteamDeck fetches Deck portability verdicts.
type SteamDeck struct {
	client      *Client
	urlTemplate string
}

// NewSteamDeck creates a portability client. An empty template selects the
// default endpoint.
func NewSteamDeck(client *Client, urlTemplate string) *SteamDeck {
	if urlTemplate == "" {
		urlTemplate = DefaultSteamDeckURL
	}
	return &SteamDeck{client: client, urlTemplate: urlTemplate}
}

// FetchPortability returns the verdict for id, PortabilityUnknown on any
// failure. The error is non-nil only if ctx is cancelled.
func (s *SteamDeck) FetchPortability(ctx context.Context, id int64) (models.PortabilitySignal, error) {
	start := time.Now()

	if id <= 0 {
		s.client.report(id, OutcomeInvalidID, start)
		return models.PortabilityUnknown, nil
	}

	body, outcome, err := s.client.get(ctx, ExpandURL(s.urlTemplate, id))
	if outcome != OutcomeOK {
		s.client.report(id, outcome, start)
		return models.PortabilityUnknown, err
	}

	signal, ok := ParseDeckReport(body)
	if !ok {
		outcome = OutcomeParseError
	}
	s.client.logger.Debug("Parsed portability", zap.Int64("app_id", id), zap.Stringer("signal", signal))
	s.client.report(id, outcome, start)
	return signal, nil
}

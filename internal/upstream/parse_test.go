package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goflare.io/gamecompat/internal/models"
)

func TestParseTierSummary(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantTier models.Tier
		wantURL  string
		wantOK   bool
	}{
		{
			name:     "summary endpoint",
			body:     `{"bestReportedTier":"platinum","confidence":"strong","score":0.83,"tier":"gold","total":560,"trendingTier":"platinum"}`,
			wantTier: models.TierGold,
			wantOK:   true,
		},
		{
			name:     "tier and url",
			body:     `{ "tier": "Platinum", "url": "https://protondb.example/app/123" }`,
			wantTier: models.TierPlatinum,
			wantURL:  "https://protondb.example/app/123",
			wantOK:   true,
		},
		{
			name:     "alternate keys",
			body:     `{"Best_Guess":" Silver ","profile_url":"https://p.example/1"}`,
			wantTier: models.TierSilver,
			wantURL:  "https://p.example/1",
			wantOK:   true,
		},
		{
			name:     "nested object",
			body:     `{"data":{"summary":{"tier_name":"bronze"}},"links":[{"link":"https://p.example/2"}]}`,
			wantTier: models.TierBronze,
			wantURL:  "https://p.example/2",
			wantOK:   true,
		},
		{
			name:     "top level wins over nested",
			body:     `{"nested":{"tier":"borked"},"tier":"gold"}`,
			wantTier: models.TierGold,
			wantOK:   true,
		},
		{
			name:     "plausible",
			body:     `{"tier":"plausible"}`,
			wantTier: models.TierPlausible,
			wantOK:   true,
		},
		{
			name:     "unrecognised tier keeps url",
			body:     `{"tier":"pending","url":"https://p.example/3"}`,
			wantTier: models.TierUnknown,
			wantURL:  "https://p.example/3",
		},
		{
			name:     "null tier",
			body:     `{"tier":null}`,
			wantTier: models.TierUnknown,
		},
		{
			name:     "regex fallback on broken json",
			body:     `{"tier": "gold", "url": "https://p.example/4",`,
			wantTier: models.TierGold,
			wantURL:  "https://p.example/4",
			wantOK:   true,
		},
		{
			name:     "not json",
			body:     "this is not json",
			wantTier: models.TierUnknown,
		},
		{
			name:     "empty",
			body:     "  ",
			wantTier: models.TierUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTierSummary([]byte(tt.body))
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseDeckReport(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   models.PortabilitySignal
		wantOK bool
	}{
		{"verified", `{"success":1,"results":{"resolved_category":3}}`, models.PortabilityVerified, true},
		{"playable", `{"success":1,"results":{"resolved_category":2}}`, models.PortabilityPlayable, true},
		{"unsupported", `{"success":1,"results":{"resolved_category":1}}`, models.PortabilityUnsupported, true},
		{"unknown category", `{"success":1,"results":{"resolved_category":0}}`, models.PortabilityUnknown, true},
		{"out of range", `{"success":1,"results":{"resolved_category":999}}`, models.PortabilityUnknown, true},
		{"not yet tested", `{"success":1}`, models.PortabilityUnknown, true},
		{"structured beats keywords", `{"success":1,"results":{"resolved_category":1,"note":"verified"}}`, models.PortabilityUnsupported, true},
		{"legacy field", `{"data":{"steam_deck_compatibility":"Playable"}}`, models.PortabilityPlayable, true},
		{"legacy field borked", `{"steam_deck_compatibility":"borked"}`, models.PortabilityUnsupported, true},
		{"legacy text", `<div>Steam Deck Verified</div>`, models.PortabilityVerified, true},
		{"legacy not supported", `this title is not supported`, models.PortabilityUnsupported, true},
		{"malformed", `{invalid json`, models.PortabilityUnknown, false},
		{"empty object", `{}`, models.PortabilityUnknown, false},
		{"empty", ``, models.PortabilityUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDeckReport([]byte(tt.body))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestExpandURL(t *testing.T) {
	assert.Equal(t, "https://x.test/api/570.json", ExpandURL("https://x.test/api/{id}.json", 570))
	assert.Equal(t, "https://x.test/api/570.json", ExpandURL("https://x.test/api/{0}.json", 570))
	assert.Equal(t, "https://x.test/q?id=570", ExpandURL("https://x.test/q?id=%d", 570))
	assert.Equal(t, "https://x.test/static", ExpandURL("https://x.test/static", 570))

	assert.True(t, HasPlaceholder("https://x.test/{id}"))
	assert.False(t, HasPlaceholder("https://x.test/"))
}

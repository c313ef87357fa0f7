package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the community compatibility rating reported by ProtonDB.
// Values are ordered from worst to best; Unknown sorts below everything.
type Tier int

const (
	TierUnknown Tier = iota
	TierBorked
	TierPlausible
	TierBronze
	TierSilver
	TierGold
	TierPlatinum
)

var tierNames = map[Tier]string{
	TierUnknown:   "unknown",
	TierBorked:    "borked",
	TierPlausible: "plausible",
	TierBronze:    "bronze",
	TierSilver:    "silver",
	TierGold:      "gold",
	TierPlatinum:  "platinum",
}

// ParseTier maps an upstream tier name to a Tier. Matching ignores case and
// surrounding whitespace; anything unrecognised is TierUnknown.
func ParseTier(s string) Tier {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == s {
			return t
		}
	}
	return TierUnknown
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Known reports whether t carries an actual rating.
func (t Tier) Known() bool {
	return t > TierUnknown && t <= TierPlatinum
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	*t = ParseTier(string(b))
	return nil
}

// TierResult is the parsed ProtonDB summary for one app.
type TierResult struct {
	Tier Tier   `json:"tier"`
	URL  string `json:"url,omitempty"`
}

// UnknownTier returns the result used when no rating could be obtained.
func UnknownTier(fallbackURL string) TierResult {
	return TierResult{Tier: TierUnknown, URL: fallbackURL}
}

// PortabilitySignal is the Steam Deck compatibility verdict. The numeric
// values match the upstream resolved_category codes.
type PortabilitySignal int

const (
	PortabilityUnknown     PortabilitySignal = 0
	PortabilityUnsupported PortabilitySignal = 1
	PortabilityPlayable    PortabilitySignal = 2
	PortabilityVerified    PortabilitySignal = 3
)

// PortabilityFromCategory maps a resolved_category code. Codes outside 0..3
// are PortabilityUnknown.
func PortabilityFromCategory(code int64) PortabilitySignal {
	switch PortabilitySignal(code) {
	case PortabilityUnsupported, PortabilityPlayable, PortabilityVerified:
		return PortabilitySignal(code)
	default:
		return PortabilityUnknown
	}
}

func (p PortabilitySignal) String() string {
	switch p {
	case PortabilityVerified:
		return "verified"
	case PortabilityPlayable:
		return "playable"
	case PortabilityUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Known reports whether p carries an actual verdict.
func (p PortabilitySignal) Known() bool {
	return p >= PortabilityUnsupported && p <= PortabilityVerified
}

func (p PortabilitySignal) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PortabilitySignal) UnmarshalJSON(b []byte) error {
	var code int64
	if err := json.Unmarshal(b, &code); err == nil {
		*p = PortabilityFromCategory(code)
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("portability signal: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "verified":
		*p = PortabilityVerified
	case "playable":
		*p = PortabilityPlayable
	case "unsupported":
		*p = PortabilityUnsupported
	default:
		*p = PortabilityUnknown
	}
	return nil
}

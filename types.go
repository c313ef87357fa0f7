package gamecompat

import (
	"goflare.io/gamecompat/internal/fetch"
	"goflare.io/gamecompat/internal/models"
)

type (
	Tier              = models.Tier
	TierResult        = models.TierResult
	PortabilitySignal = models.PortabilitySignal
	Result            = fetch.Result
	WarmStats         = fetch.WarmStats
)

const (
	TierUnknown   = models.TierUnknown
	TierBorked    = models.TierBorked
	TierPlausible = models.TierPlausible
	TierBronze    = models.TierBronze
	TierSilver    = models.TierSilver
	TierGold      = models.TierGold
	TierPlatinum  = models.TierPlatinum

	PortabilityUnknown     = models.PortabilityUnknown
	PortabilityUnsupported = models.PortabilityUnsupported
	PortabilityPlayable    = models.PortabilityPlayable
	PortabilityVerified    = models.PortabilityVerified
)

// DefaultWarmConcurrency is used by Warm when concurrency is not positive.
const DefaultWarmConcurrency = fetch.DefaultWarmConcurrency

// ParseTier maps a tier name such as "gold" to a Tier.
func ParseTier(s string) Tier {
	return models.ParseTier(s)
}

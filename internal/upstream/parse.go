package upstream

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"goflare.io/gamecompat/internal/models"
)

const maxSearchDepth = 32

var (
	tierKeys = []string{"tier", "best_guess", "tier_name"}
	urlKeys  = []string{"url", "profile_url", "link"}

	tierPattern = regexp.MustCompile(`(?i)"tier"\s*:\s*"([^"]+)"`)
	urlPattern  = regexp.MustCompile(`(?i)"url"\s*:\s*"([^"]+)"`)

	deckFieldPattern = regexp.MustCompile(`(?i)"steam_deck_compatibility"\s*:\s*"([^"]+)"`)
	deckVerified     = regexp.MustCompile(`steam[_ ]?deck.*verified`)
	deckPlayable     = regexp.MustCompile(`steam[_ ]?deck.*playable`)
)

// ParseTierSummary extracts the tier and profile URL from a ProtonDB summary
// body. Field names are matched case-insensitively at the top level first and
// then in nested objects and arrays. When that finds neither field, the raw
// body is scanned with a regular expression, which also covers bodies that
// are not valid JSON. ok is false when nothing usable was found.
func ParseTierSummary(body []byte) (result models.TierResult, ok bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.TierResult{}, false
	}

	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		tierStr, _ := findString(root, tierKeys, 0)
		url, _ := findString(root, urlKeys, 0)
		result = models.TierResult{Tier: models.ParseTier(tierStr), URL: url}
		if result.Tier.Known() || result.URL != "" {
			return result, result.Tier.Known()
		}
	}

	if m := tierPattern.FindSubmatch(body); m != nil {
		result.Tier = models.ParseTier(string(m[1]))
	}
	if m := urlPattern.FindSubmatch(body); m != nil {
		result.URL = string(m[1])
	}
	return result, result.Tier.Known()
}

// findString looks for the first of keys in v. Each object is searched key by
// key before its children are visited.
func findString(v gjson.Result, keys []string, depth int) (string, bool) {
	if depth > maxSearchDepth {
		return "", false
	}

	switch {
	case v.IsObject():
		for _, k := range keys {
			var (
				val   gjson.Result
				found bool
			)
			v.ForEach(func(key, value gjson.Result) bool {
				if strings.EqualFold(key.String(), k) {
					val, found = value, true
					return false
				}
				return true
			})
			if !found {
				continue
			}
			switch val.Type {
			case gjson.String, gjson.Number, gjson.True, gjson.False:
				return val.String(), true
			}
		}

		var (
			out   string
			found bool
		)
		v.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() || value.IsArray() {
				out, found = findString(value, keys, depth+1)
			}
			return !found
		})
		return out, found

	case v.IsArray():
		var (
			out   string
			found bool
		)
		v.ForEach(func(_, value gjson.Result) bool {
			out, found = findString(value, keys, depth+1)
			return !found
		})
		return out, found
	}
	return "", false
}

// ParseDeckReport extracts the portability verdict from a Steam Deck
// compatibility report. The structured envelope
// {"success":1,"results":{"resolved_category":N}} is authoritative; an
// envelope without results means the app has not been tested. Other bodies
// go through a legacy text scan. ok is false when the body could not be
// understood at all.
func ParseDeckReport(body []byte) (signal models.PortabilitySignal, ok bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.PortabilityUnknown, false
	}

	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		if root.IsObject() && (root.Get("success").Exists() || root.Get("results").Exists()) {
			category := root.Get("results.resolved_category")
			if category.Type == gjson.Number {
				return models.PortabilityFromCategory(category.Int()), true
			}
			return models.PortabilityUnknown, true
		}
		if v, found := findString(root, []string{"steam_deck_compatibility"}, 0); found {
			if s, matched := deckKeyword(v); matched {
				return s, true
			}
		}
	} else if m := deckFieldPattern.FindSubmatch(body); m != nil {
		if s, matched := deckKeyword(string(m[1])); matched {
			return s, true
		}
	}

	return scanDeckText(body)
}

func deckKeyword(v string) (models.PortabilitySignal, bool) {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "verified"):
		return models.PortabilityVerified, true
	case strings.Contains(v, "playable"):
		return models.PortabilityPlayable, true
	case strings.Contains(v, "unsupported"), strings.Contains(v, "borked"):
		return models.PortabilityUnsupported, true
	}
	return models.PortabilityUnknown, false
}

// scanDeckText looks for verdict words anywhere in the body.
func scanDeckText(body []byte) (models.PortabilitySignal, bool) {
	lower := bytes.ToLower(body)
	switch {
	case deckVerified.Match(lower):
		return models.PortabilityVerified, true
	case deckPlayable.Match(lower), bytes.Contains(lower, []byte("playable")):
		return models.PortabilityPlayable, true
	case bytes.Contains(lower, []byte("unsupported")),
		bytes.Contains(lower, []byte("not supported")),
		bytes.Contains(lower, []byte("not compatible")):
		return models.PortabilityUnsupported, true
	}
	return models.PortabilityUnknown, false
}

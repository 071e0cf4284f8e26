package llm

import "strings"

// SafetySetting pairs a harm category with a blocking threshold.
type SafetySetting struct {
	Category  string `json:"category" yaml:"category"`
	Threshold string `json:"threshold" yaml:"threshold"`
}

// Safety policy tiers.
const (
	BlockNone           = "BLOCK_NONE"
	BlockOnlyHigh       = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    = "BLOCK_LOW_AND_ABOVE"

	DefaultSafetyTier = BlockMediumAndAbove
)

// HarmCategories lists the categories every tier applies to.
var HarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

var safetyTiers = map[string]bool{
	BlockNone:           true,
	BlockOnlyHigh:       true,
	BlockMediumAndAbove: true,
	BlockLowAndAbove:    true,
}

// IsSafetyTier reports whether tier names a known safety policy tier.
func IsSafetyTier(tier string) bool {
	return safetyTiers[strings.ToUpper(strings.TrimSpace(tier))]
}

// SafetySettingsFor maps a named tier to category/threshold pairs. Unknown
// tiers use DefaultSafetyTier.
func SafetySettingsFor(tier string) []SafetySetting {
	threshold := strings.ToUpper(strings.TrimSpace(tier))
	if !safetyTiers[threshold] {
		threshold = DefaultSafetyTier
	}
	settings := make([]SafetySetting, 0, len(HarmCategories))
	for _, category := range HarmCategories {
		settings = append(settings, SafetySetting{Category: category, Threshold: threshold})
	}
	return settings
}

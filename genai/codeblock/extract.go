// Package codeblock finds the code or command payload in a free-form model
// response.
package codeblock

import (
	"log"
	"regexp"
	"strings"

	"github.com/rin1809/fwexec/internal/platform"
)

// Tier identifies which extraction stage produced a match.
type Tier string

const (
	TierTagged  Tier = "tagged"
	TierGeneric Tier = "generic"
	TierDirect  Tier = "direct"
	TierRaw     Tier = "raw"
)

// Match is the outcome of an extraction.
type Match struct {
	Code string
	Tag  string
	Tier Tier
}

const maxDirectCodeLines = 30

var conversationalMarkers = []string{"response:", "here's", "this will", "explanation:", "note:", "```"}

const selfIdentification = "I am a large language model"

var (
	genericStrict   = regexp.MustCompile("```(?:([\\w\\-./+]+)[^\\S\\n]*)?\\s*\\n([\\s\\S]*?)\\n```")
	genericFlexible = regexp.MustCompile("```(?:([\\w\\-./+]+)[^\\S\\n]*)?\\s*([\\s\\S]*?)\\s*```")
)

// Extract returns the most plausible payload of raw for the requested
// extension. hint is free text (usually the user prompt) used to detect
// device CLI requests. It never fails.
func Extract(raw, ext, hint string) string {
	return ExtractMatch(raw, ext, hint).Code
}

// ExtractMatch is Extract with the matching tier exposed.
func ExtractMatch(raw, ext, hint string) *Match {
	if raw == "" {
		return &Match{Tier: TierRaw}
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	deviceRequest := ext == DeviceTag || platform.IsDeviceCLIHint(hint)

	for _, rule := range Rules(Tags(ext, deviceRequest)) {
		if body, ok := lastSubmatch(rule.Pattern(), raw, 1); ok {
			return &Match{Code: strings.TrimSpace(body), Tag: rule.Tag, Tier: TierTagged}
		}
	}

	if m := lastGeneric(raw); m != nil {
		hintTag := strings.ToLower(strings.TrimSpace(m[1]))
		switch {
		case hintTag == "":
			log.Printf("codeblock: untagged fenced block used for .%s", ext)
		case (hintTag == DeviceTag && deviceRequest) || aliasOf(hintTag, ext):
		default:
			log.Printf("codeblock: fenced block tagged %q used for .%s", hintTag, ext)
		}
		return &Match{Code: strings.TrimSpace(m[2]), Tag: hintTag, Tier: TierGeneric}
	}

	if LooksLikeCode(raw) {
		log.Printf("codeblock: no fenced block, raw text treated as .%s code", ext)
		return &Match{Code: strings.TrimSpace(raw), Tier: TierDirect}
	}
	log.Printf("codeblock: no code found for .%s, returning raw text: %.100q", ext, raw)
	return &Match{Code: strings.TrimSpace(raw), Tier: TierRaw}
}

// LooksLikeCode reports whether unfenced text is plausibly a bare code body.
func LooksLikeCode(raw string) bool {
	if len(strings.Split(strings.TrimSuffix(raw, "\n"), "\n")) >= maxDirectCodeLines {
		return false
	}
	if strings.HasPrefix(raw, selfIdentification) {
		return false
	}
	lower := strings.ToLower(raw)
	for _, marker := range conversationalMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func lastGeneric(raw string) []string {
	for _, re := range []*regexp.Regexp{genericStrict, genericFlexible} {
		if all := re.FindAllStringSubmatch(raw, -1); len(all) > 0 {
			return all[len(all)-1]
		}
	}
	return nil
}

func lastSubmatch(re *regexp.Regexp, text string, group int) (string, bool) {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return "", false
	}
	return all[len(all)-1][group], true
}

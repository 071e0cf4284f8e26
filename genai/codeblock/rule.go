package codeblock

import (
	"regexp"
	"strings"
	"sync"
)

// DeviceTag is the fence tag used for FortiOS CLI blocks.
const DeviceTag = "fortios"

// aliases lists additional fence tags accepted for an extension. New languages
// are additions to this table.
var aliases = map[string][]string{
	"py":      {"python"},
	"sh":      {"bash", "shell"},
	"bat":     {"batch"},
	"ps1":     {"powershell"},
	"fortios": {"cli", "text"},
}

// deviceTrailingTags are appended for device CLI requests.
var deviceTrailingTags = []string{"cli", "text"}

// Strictness controls how a fence body is delimited.
type Strictness int

const (
	// Strict requires the body to start after a newline and end with a
	// newline before the closing fence.
	Strict Strictness = iota
	// Flexible tolerates inline bodies. The tag must still be followed by
	// whitespace or the closing fence so "py" does not match "python".
	Flexible
)

// Rule is one (tag, strictness) extraction attempt.
type Rule struct {
	Tag        string
	Strictness Strictness
}

var strictnesses = []Strictness{Strict, Flexible}

var patterns sync.Map // pattern source -> *regexp.Regexp

func compile(expr string) *regexp.Regexp {
	if cached, ok := patterns.Load(expr); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(expr)
	patterns.Store(expr, re)
	return re
}

// Pattern returns the compiled case-insensitive pattern for the rule. The
// first submatch is the block body.
func (r Rule) Pattern() *regexp.Regexp {
	tag := regexp.QuoteMeta(r.Tag)
	if r.Strictness == Strict {
		return compile("(?i)```" + tag + `(?:[^\S\n].*?)?\s*\n([\s\S]*?)\n` + "```")
	}
	return compile("(?i)```" + tag + `(?:\s+([\s\S]*?))?\s*` + "```")
}

// Tags builds the ordered, de-duplicated candidate tag list for ext.
func Tags(ext string, deviceRequest bool) []string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	tags := []string{ext}
	tags = append(tags, aliases[ext]...)
	if deviceRequest {
		tags = append([]string{DeviceTag}, tags...)
		tags = append(tags, deviceTrailingTags...)
	}
	return dedupe(tags)
}

// Rules expands tags into the ordered rule list evaluated by Extract.
func Rules(tags []string) []Rule {
	rules := make([]Rule, 0, len(tags)*len(strictnesses))
	for _, tag := range tags {
		for _, s := range strictnesses {
			rules = append(rules, Rule{Tag: tag, Strictness: s})
		}
	}
	return rules
}

// aliasOf reports whether hint names ext or one of its aliases.
func aliasOf(hint, ext string) bool {
	if hint == ext {
		return true
	}
	for _, a := range aliases[ext] {
		if a == hint {
			return true
		}
	}
	return false
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

package codeblock

import (
	"regexp"
	"strings"
)

// Block is a fenced block located in a larger text.
type Block struct {
	Code  string
	Tag   string
	Start int
	End   int
}

// anyTag matches an untagged fence in LastTagged priority lists.
const anyTag = "code"

var pipInstall = regexp.MustCompile("(?is)```bash\\s*pip install\\s+([\\w\\-=.+\\[\\]]+)\\s*```")

// DebugTags returns the tag priority used to find a corrected code block.
func DebugTags(ext string) []string {
	tags := Tags(ext, false)
	if ext == DeviceTag {
		tags = dedupe(append(tags, DeviceTag))
	}
	return dedupe(append(tags, anyTag))
}

// LastTagged returns the last strict fenced block for the first tag in
// priority order that has any. The "code" tag matches an untagged fence.
func LastTagged(text string, tags []string) (*Block, bool) {
	for _, tag := range tags {
		quoted := regexp.QuoteMeta(tag)
		if tag == anyTag {
			quoted = ""
		}
		re := compile("(?im)```" + quoted + `(?:[^\S\n].*?)?\s*\n([\s\S]*?)\n` + "```")
		all := re.FindAllStringSubmatchIndex(text, -1)
		if len(all) == 0 {
			continue
		}
		last := all[len(all)-1]
		return &Block{
			Code:  strings.TrimSpace(text[last[2]:last[3]]),
			Tag:   tag,
			Start: last[0],
			End:   last[1],
		}, true
	}
	return nil, false
}

// PipSuggestion finds a ```bash pip install <pkg>``` suggestion. It returns
// the package spec and text with the suggestion removed.
func PipSuggestion(text string) (string, string, bool) {
	loc := pipInstall.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}
	pkg := strings.TrimSpace(text[loc[2]:loc[3]])
	remaining := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return pkg, remaining, true
}

package memory

import (
	"regexp"
	"strings"
)

// RememberCommand is an explicit remember instruction found in user text.
type RememberCommand struct {
	Key   string
	Value string
}

// rememberPatterns are tried in order; the first match wins. Each has
// exactly two groups: key, then value.
var rememberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\bremember\s+(?:that\s+)?my\s+(.+?)\s+is\s+(.+)`),
	regexp.MustCompile(`(?is)\bremember\s+(?:that\s+)?(.+?)\s+is\s+(.+)`),
	regexp.MustCompile(`(?is)\bremember:\s*(.+?)\s*[=-]\s*(.+)`),
	regexp.MustCompile(`(?is)\bsave\s+(?:that\s+)?my\s+(.+?)\s+is\s+(.+)`),
	regexp.MustCompile(`(?is)\bmy\s+(.+?)\s+is\s+(.+?)[.,]?\s*remember\s+(?:this|that)\b`),
}

// ParseRememberCommand extracts a (key, value) pair from text such as
// "Remember that my callsign is Falcon". It returns false when no pattern
// matches. It has no side effects.
func ParseRememberCommand(text string) (RememberCommand, bool) {
	for _, re := range rememberPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		value := trimValue(m[2])
		if key == "" || value == "" {
			continue
		}
		return RememberCommand{Key: key, Value: value}, true
	}
	return RememberCommand{}, false
}

// trimValue trims whitespace and one trailing sentence terminator.
func trimValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, ".")
	v = strings.TrimSuffix(v, "!")
	return strings.TrimSpace(v)
}

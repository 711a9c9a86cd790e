package parser

import (
	"strings"
	"time"
	"unicode"
)

// placeholderNames are values the game writes when it has no actor name.
var placeholderNames = map[string]struct{}{
	"unknown": {},
	"none":    {},
	"n/a":     {},
	"null":    {},
}

// isEntityID reports whether name looks like a game entity id rather than a
// player handle, e.g. "ANVL_Arrow_651076209584" or "PU_Pilots-Human_123456789".
func isEntityID(name string) bool {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return false
	}
	suffix := name[i+1:]
	if len(suffix) <= 8 {
		return false
	}
	for _, r := range suffix {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// cleanName returns a player handle suitable for display, or "" when raw is
// an entity id or a placeholder.
func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" || isEntityID(name) {
		return ""
	}
	if _, ok := placeholderNames[strings.ToLower(name)]; ok {
		return ""
	}
	name = strings.NewReplacer("'", "", `"`, "", "`", "").Replace(name)
	return strings.TrimSpace(name)
}

// cleanLabel strips the entity suffix from weapon or cause identifiers and
// drops placeholders.
func cleanLabel(raw string) string {
	label := strings.TrimSpace(raw)
	if _, ok := placeholderNames[strings.ToLower(label)]; ok {
		return ""
	}
	return entitySuffix.ReplaceAllString(label, "")
}

// parseTimestamp parses the ISO-8601 stamp the game prefixes lines with.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// selfInflicted reports whether a death cause means the victim killed themselves.
func selfInflicted(cause string) bool {
	c := strings.ToLower(cause)
	for _, k := range []string{"suicide", "collision", "crash", "fall"} {
		if strings.Contains(c, k) {
			return true
		}
	}
	return false
}

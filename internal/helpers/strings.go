package helpers

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// SplitAndTrim splits s by sep and trims empty parts.
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

const maxStemLen = 64

// SanitizeStem keeps letters, digits, '-' and '_' and replaces every other
// run of characters with a single '_'. Returns fallback when nothing is left.
func SanitizeStem(s, fallback string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_-")
	if len(out) > maxStemLen {
		out = strings.TrimRight(out[:maxStemLen], "_-")
	}
	if out == "" {
		return fallback
	}
	return out
}

// URLStem returns the base name of a URL path without its extension.
func URLStem(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

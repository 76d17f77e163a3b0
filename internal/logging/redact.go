package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// credentialPatterns match provider keys and bearer tokens.
var credentialPatterns = regexp.MustCompile(strings.Join([]string{
	`sk-ant-[A-Za-z0-9_\-]{20,}`,
	`sk-[A-Za-z0-9_\-]{20,}`,
	`gh[pousr]_[A-Za-z0-9]{36,}`,
	`AKIA[0-9A-Z]{16}`,
	`xox[baprs]-[A-Za-z0-9\-]{10,}`,
	`AIza[0-9A-Za-z_\-]{35}`,
	`eyJ[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}`,
}, "|"))

// Redact replaces every credential-shaped substring of text with its first
// and last three characters around a mask.
func Redact(text string) string {
	return credentialPatterns.ReplaceAllStringFunc(text, mask)
}

func mask(s string) string {
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + strings.Repeat("*", len(s)-6) + s[len(s)-3:]
}

// String is zap.String with the value passed through Redact.
func String(key, val string) zap.Field {
	return zap.String(key, Redact(val))
}

package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log lines.
const RedactedValue = "[REDACTED]"

// plainKeys are logged verbatim by MaskField.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"operation": {},
	"outcome":   {},
	"code":      {},
	"kind":      {},
	"vault":     {},
	"holder":    {},
	"method":    {},
	"path":      {},
	"status":    {},
}

// secretKeys are masked by every logger built here, whichever helper produced
// the attribute.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"secret":        {},
	"hmac_secret":   {},
	"dsn":           {},
	"private_key":   {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether MaskField emits values for key unchanged.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[normalizeKey(key)]
	return ok
}

// IsSecret reports whether key always carries a credential.
func IsSecret(key string) bool {
	_, ok := secretKeys[normalizeKey(key)]
	return ok
}

// MaskField returns an attribute whose value is redacted unless key is
// allowlisted. Empty values pass through so missing credentials stay visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsSecret(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}

package logger

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Status is the status attr value for a finished operation.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return "fail"
}

// RoundMS trims d to whole milliseconds; negative durations log as zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// PreviewAttrs describes a list by its size plus the first limit names:
// <prefix>_total, <prefix>_preview and <prefix>_truncated when cut.
func PreviewAttrs(prefix string, values []string, limit int) []slog.Attr {
	attrs := []slog.Attr{slog.Int(prefix+"_total", len(values))}
	shown := values
	if len(shown) > limit {
		shown = shown[:max(limit, 0)]
	}
	if len(shown) > 0 {
		attrs = append(attrs, slog.String(prefix+"_preview", strings.Join(shown, ", ")))
	}
	if len(shown) < len(values) {
		attrs = append(attrs, slog.Bool(prefix+"_truncated", true))
	}
	return attrs
}

// SanitizeLimit keeps user text safe for a single log field: control and
// format runes go (tab and newline stay) and at most limit runes remain.
func SanitizeLimit(s string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n >= limit {
			break
		}
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

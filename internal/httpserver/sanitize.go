package httpserver

import "strings"

// maxLogValueLen caps logged request values so an oversized header or query
// parameter cannot bloat log lines.
const maxLogValueLen = 256

// sanitizeLog strips control characters from untrusted values before they
// reach structured log output (CWE-117) and truncates oversized values.
func sanitizeLog(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return '_'
		}
		if r >= 0x7f && r <= 0x9f {
			return '_'
		}
		return r
	}, s)

	if len(s) > maxLogValueLen {
		return s[:maxLogValueLen] + "...(truncated)"
	}
	return s
}

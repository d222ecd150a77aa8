// Package redact scrubs credentials from telemetry payloads before
// they are persisted. Error messages and metadata routinely capture
// raw CLI output, which is exactly where deploy tokens leak.
package redact

import "regexp"

const placeholder = "[redacted]"

var (
	// Bearer tokens in captured HTTP traffic.
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`)
	// Anthropic and generic sk- style API keys.
	skKeyRegex = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}\b`)
	// GitHub tokens (classic and fine-grained).
	ghTokenRegex = regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{16,}\b`)
	// Credentials embedded in URLs. The scheme separator and trailing
	// @ are preserved so the URL stays parseable.
	urlCredRegex = regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`)
	// key=value assignments of obvious secret names. The key and any
	// surrounding JSON quoting are kept so documents stay valid.
	assignRegex = regexp.MustCompile(`(?i)\b(api[_-]?key|token|password|secret)("?\s*[=:]\s*"?)([^\s"]+)`)
)

// String replaces every recognized credential in s with a
// placeholder. Safe to call on arbitrary text, including JSON.
func String(s string) string {
	s = bearerRegex.ReplaceAllString(s, placeholder)
	s = skKeyRegex.ReplaceAllString(s, placeholder)
	s = ghTokenRegex.ReplaceAllString(s, placeholder)
	s = urlCredRegex.ReplaceAllString(s, "://"+placeholder+"@")
	s = assignRegex.ReplaceAllString(s, "${1}${2}"+placeholder)
	return s
}

// Bytes is String for raw JSON documents.
func Bytes(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	return []byte(String(string(b)))
}

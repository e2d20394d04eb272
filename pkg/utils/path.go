package utils

import "strings"

var pathKeyReplacer = strings.NewReplacer(
	".", "_",
	"#", "_",
	"$", "_",
	"[", "_",
	"]", "_",
)

// SanitizePathKey replaces the characters the realtime database forbids in
// path segments (. # $ [ ]) with underscores. Idempotent, so already
// sanitized keys pass through unchanged.
func SanitizePathKey(key string) string {
	return pathKeyReplacer.Replace(key)
}

package storage

import (
	"strings"
	"unicode"
)

// invalidNameChars are stripped from file names, matching the set rejected
// by Windows file systems plus the path separators.
const invalidNameChars = `<>:"/\|?*`

// SanitizeFileName makes a caller-supplied base name safe to use on disk:
// invalid characters are stripped, whitespace runs collapse to a single
// underscore, repeated underscores collapse, leading/trailing underscores
// are trimmed and the result is capped at 200 characters. An input that
// sanitizes to nothing yields "file". The function is idempotent.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || strings.ContainsRune(invalidNameChars, r):
			// dropped
		case unicode.IsSpace(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	sanitized := b.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if runes := []rune(sanitized); len(runes) > maxNameLength {
		sanitized = strings.Trim(string(runes[:maxNameLength]), "_")
	}
	if sanitized == "" {
		return defaultFileName
	}
	return sanitized
}

// sanitizeExt strips invalid characters from an extension, keeping the
// leading dot. An extension that sanitizes away entirely is dropped.
func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	cleaned := SanitizeFileName(strings.TrimPrefix(ext, "."))
	if cleaned == defaultFileName && strings.Trim(strings.TrimPrefix(ext, "."), "_ ") == "" {
		return ""
	}
	return "." + cleaned
}

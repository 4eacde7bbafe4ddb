package services

import "strings"

const unknownArea = "Unknown Area"

// abstractFromFull keeps the last comma separated segment of an address,
// usually the neighbourhood or city, so exact locations stay private.
func abstractFromFull(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return ""
	}
	parts := strings.Split(full, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// firstNonEmpty returns the first trimmed non-empty value, or unknownArea.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return unknownArea
}

package model

import "strings"

// bone name suffix markers stripped during normalization. Exporters commonly
// decorate duplicated or mirrored bones with these.
var boneNameSuffixMarkers = []string{"_end", "_dup", ".l", ".r", "_l", "_r"}

// lowerASCII lowercases A-Z without allocating for already-lower strings.
func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			return strings.ToLower(s)
		}
	}
	return s
}

// NormalizeBoneName canonicalizes a bone name for loose matching: the last
// namespace segment (split on ':' or '|') is kept, known suffix markers are
// stripped, non-alphanumeric characters are dropped, and the result is
// lowercased. Different exporters decorate the same rig differently; clips
// authored against one export still need to land on the other's bones.
//
// Parameters:
//   - name: the raw bone name
//
// Returns:
//   - string: the canonical form (may be empty for fully symbolic names)
func NormalizeBoneName(name string) string {
	if idx := strings.LastIndexAny(name, ":|"); idx >= 0 {
		name = name[idx+1:]
	}

	lower := strings.ToLower(name)
	for _, marker := range boneNameSuffixMarkers {
		if strings.HasSuffix(lower, marker) {
			name = name[:len(lower)-len(marker)]
			lower = lower[:len(lower)-len(marker)]
			break
		}
	}

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

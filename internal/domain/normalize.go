package domain

import (
	"fmt"
	"strings"
)

// NormalizeText prepares text for comparison:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses multiple spaces into one
//
// Diacritics, hyphens, and apostrophes are preserved.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)

	// Compress multiple spaces into one.
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizePlaceName canonicalizes a place name for storage: collapsed
// whitespace, Title Case per word. "  chennai  CMBT " becomes "Chennai Cmbt".
func NormalizePlaceName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// Operator prefixes that carry no route identity.
var operatorPrefixes = []string{"MTC", "TNSTC", "SETC", "PRTC"}

// NormalizeBusNumber strips formatting and operator prefixes so that
// "TNSTC 48-A" and "48A" compare equal.
func NormalizeBusNumber(number string) string {
	s := strings.ToUpper(strings.TrimSpace(number))
	s = strings.NewReplacer(" ", "", "-", "", ".", "").Replace(s)
	for _, p := range operatorPrefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			s = s[len(p):]
			break
		}
	}
	return s
}

// GenerateBusNumber builds a synthetic number for a bus promoted from a
// timing board, e.g. "IMG-CHE-MAD-003".
func GenerateBusNumber(from, to string, seq int) string {
	return fmt.Sprintf("IMG-%s-%s-%03d", placeCode(from), placeCode(to), seq)
}

// GenerateManualBusNumber builds a synthetic number for a manual route
// contribution submitted without one.
func GenerateManualBusNumber(from, to string, seq int) string {
	return fmt.Sprintf("GEN-%s-%s-%03d", placeCode(from), placeCode(to), seq)
}

// IsGeneratedBusNumber reports whether the number was synthesized rather
// than read off a vehicle. Generated numbers never count as identifier
// matches during duplicate detection.
func IsGeneratedBusNumber(number string) bool {
	s := strings.ToUpper(strings.TrimSpace(number))
	return strings.HasPrefix(s, "IMG-") || strings.HasPrefix(s, "GEN-")
}

func placeCode(name string) string {
	s := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(name)))
	// Slice by runes so Tamil names keep whole characters.
	if runes := []rune(s); len(runes) > 3 {
		s = string(runes[:3])
	}
	if s == "" {
		s = "XXX"
	}
	return s
}

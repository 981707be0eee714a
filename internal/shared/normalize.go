package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes counterpart/establishment names for matching:
// lowercase, diacritics stripped, non-alphanumerics dropped, whitespace
// collapsed. "Pão de Açúcar  S.A." and "pao de acucar sa" normalize equal.
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	stripped, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		stripped = lowered
	}
	var b strings.Builder
	lastSpace := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NameTokens splits a normalized name into matching tokens.
func NameTokens(name string) []string {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

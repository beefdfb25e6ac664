// Package textutil provides the text canonicalization used across the
// chatbot pipeline. Normalize is the lossy comparison form: free-text
// Spanish messages need diacritic and elongation insensitivity
// ("Holaaaa!!" vs "hola"), so it strips accents, drops punctuation, and
// collapses repeated characters before any lookup or dedup check. Clean is
// the storage form: it only fixes encoding and whitespace, keeping the text
// readable.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a string for loose comparison:
//
//  1. Unicode NFD decomposition with combining marks removed ("día" → "dia")
//  2. lowercasing
//  3. non-word characters replaced by spaces
//  4. runs of the same character collapsed to a single occurrence
//  5. whitespace collapsed to single spaces and trimmed
//
// Normalize is a pure function and never fails; empty input yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Drop combining marks left over from decomposition.
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}

	collapsed := collapseRepeats(b.String())
	return strings.Join(strings.Fields(collapsed), " ")
}

// Clean normalizes text for storage and embedding: Unicode NFC
// composition, control characters replaced by spaces, and whitespace
// collapsed to single spaces. Case, diacritics, punctuation, and repeated
// letters all survive, so the result is still readable Spanish. Use
// Normalize, not Clean, for comparison keys.
func Clean(s string) string {
	if s == "" {
		return ""
	}

	composed := norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(composed))
	for _, r := range composed {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseRepeats reduces any run of 2+ identical runes to one occurrence.
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

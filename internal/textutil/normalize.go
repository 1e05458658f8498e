// Package textutil holds the string normalization shared by command matching.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips accents, joins whitespace runs with "_" and
// drops slashes, so "/Catálogo" and "catalogo" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}
	stripped = strings.Join(strings.Fields(stripped), "_")
	return strings.ReplaceAll(stripped, "/", "")
}

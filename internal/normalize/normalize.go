// Package normalize canonicalizes Arabic text so that index building and
// query processing agree on a single orthographic form. The same functions
// run on both sides; everything here is deterministic and idempotent.
package normalize

import (
	"regexp"
	"strings"
)

// diacriticsRe matches Arabic diacritic marks (harakat, shadda, sukun and
// the small Quranic annotation range) that carry no lexical meaning for
// retrieval.
var diacriticsRe = regexp.MustCompile(`[\x{0617}-\x{061A}\x{064B}-\x{0652}]`)

// tokenRe matches retrieval tokens: runs of Arabic letters, Latin letters
// (already lowercased by Text) or Western digits.
var tokenRe = regexp.MustCompile(`[\x{0621}-\x{064A}a-z0-9]+`)

// folder maps orthographic variants onto canonical forms:
// alef variants to bare alef, alef maqsura to yaa, hamza carriers to their
// base letter, Arabic punctuation to ASCII, tatweel removed.
var folder = strings.NewReplacer(
	"ـ", "", // tatweel
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ى", "ي",
	"ؤ", "و",
	"ئ", "ي",
	"،", ",",
	"؛", ";",
	"؟", "?",
)

// foldDigit maps Arabic-Indic and Eastern Arabic-Indic digits to Western.
func foldDigit(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩': // ٠-٩
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹': // ۰-۹
		return '0' + (r - '۰')
	}
	return r
}

// Text returns the canonical form of s: diacritics and tatweel stripped,
// alef/yaa/hamza variants folded, Arabic digits and punctuation folded to
// ASCII, Latin letters lowercased, whitespace collapsed.
// Text(Text(s)) == Text(s) for all s.
func Text(s string) string {
	s = diacriticsRe.ReplaceAllString(s, "")
	s = folder.Replace(s)
	s = strings.Map(foldDigit, s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens canonicalizes s and splits it into retrieval tokens. Punctuation
// and symbols act as separators and never appear in the output. The result
// is never nil; a string with no token characters yields an empty slice.
func Tokens(s string) []string {
	toks := tokenRe.FindAllString(Text(s), -1)
	if toks == nil {
		return []string{}
	}
	return toks
}

package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining diacritics so "intéressé" and "interesse"
// compare equal.
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases the text, folds accents and replaces punctuation
// with spaces. All matching in this package operates on normalised text.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	folded, _, err := transform.String(foldAccents, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize returns the words of the normalised form of text.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// French function words that carry no signal for objection matching.
var stopwords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"de": true, "du": true, "a": true, "au": true, "aux": true, "et": true,
	"ou": true, "mais": true, "donc": true, "or": true, "ni": true, "car": true,
	"je": true, "tu": true, "il": true, "elle": true, "on": true, "nous": true,
	"vous": true, "ils": true, "elles": true, "ce": true, "cet": true,
	"cette": true, "ces": true, "mon": true, "ma": true, "mes": true,
	"son": true, "sa": true, "ses": true, "votre": true, "vos": true,
	"que": true, "qui": true, "quoi": true, "dans": true, "pour": true,
	"par": true, "sur": true, "avec": true, "sans": true, "en": true,
	"y": true, "est": true, "suis": true, "etes": true, "sont": true,
	"c": true, "d": true, "j": true, "l": true, "m": true, "n": true,
	"s": true, "t": true, "qu": true, "me": true, "te": true, "se": true,
}

// ContentTokens tokenizes and drops stopwords.
func ContentTokens(text string) []string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// IsStopword reports whether a normalised token is a French function word.
func IsStopword(token string) bool {
	return stopwords[token]
}

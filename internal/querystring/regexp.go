package querystring

import (
	"strings"
	"unicode"
)

// luceneReserved are the characters with meaning in Lucene regular
// expressions. Regexp queries are anchored, so no ^ or $ is needed.
const luceneReserved = `.?+*|{}[]()"\#@&<>~`

// ToRegexp converts a pattern into a Lucene regular expression that matches
// the whole field value. Case-insensitive patterns expand each cased letter
// into a two-rune class, which keeps the match exact on keyword fields.
func ToRegexp(escape, multi, single rune, matchCase bool, pattern string) string {
	runes := []rune(pattern)
	if len(runes) == 1 && runes[0] == escape {
		return literalRegexp(escape, matchCase)
	}

	var b strings.Builder
	b.Grow(len(pattern) * 2)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == escape:
			if i+1 < len(runes) {
				i++
				b.WriteString(literalRegexp(runes[i], matchCase))
			}
		case c == single:
			b.WriteByte('.')
		case c == multi:
			b.WriteString(".*")
		default:
			b.WriteString(literalRegexp(c, matchCase))
		}
	}
	return b.String()
}

// Regexp applies ToRegexp with p's metacharacters.
func (p Pattern) Regexp(pattern string) string {
	return ToRegexp(p.Escape, p.Wildcard, p.SingleChar, p.MatchCase, pattern)
}

// Literal returns a regular expression matching exactly s, or s in any
// letter case when matchCase is false.
func Literal(s string, matchCase bool) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, c := range s {
		b.WriteString(literalRegexp(c, matchCase))
	}
	return b.String()
}

func literalRegexp(c rune, matchCase bool) string {
	if !matchCase {
		lower, upper := unicode.ToLower(c), unicode.ToUpper(c)
		if lower != upper {
			return "[" + string(lower) + string(upper) + "]"
		}
	}
	if strings.ContainsRune(luceneReserved, c) {
		return `\` + string(c)
	}
	return string(c)
}

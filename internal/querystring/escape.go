// Package querystring rewrites filter pattern-match expressions into the
// search backend's pattern syntaxes.
//
// A pattern is described by three metacharacters chosen by the caller:
// a multi-character wildcard, a single-character wildcard, and an escape
// character. The backend's query_string syntax always uses '*' and '?'
// as wildcards and '\' as its escape.
package querystring

import (
	"strings"
	"unicode"
)

// Pattern holds the metacharacters of a source pattern.
type Pattern struct {
	Escape     rune
	Wildcard   rune
	SingleChar rune
	MatchCase  bool
}

// Default is the metacharacter set used when a filter document names none.
var Default = Pattern{Escape: '\\', Wildcard: '*', SingleChar: '?', MatchCase: true}

// ToQueryString converts a pattern into query_string syntax.
//
// Rules, applied left to right:
//   - escape followed by any character emits '\' and that character
//   - a trailing escape is dropped, unless it is the whole pattern
//   - the single-char wildcard becomes '?'
//   - the multi-char wildcard becomes '*'
//   - anything else is copied unchanged
//
// When matchCase is false, literal characters are lower-cased; wildcards
// and escaped characters are left alone.
func ToQueryString(escape, multi, single rune, matchCase bool, pattern string) string {
	runes := []rune(pattern)
	if len(runes) == 1 && runes[0] == escape {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == escape:
			if i+1 < len(runes) {
				i++
				b.WriteRune('\\')
				b.WriteRune(runes[i])
			}
		case c == single:
			b.WriteRune('?')
		case c == multi:
			b.WriteRune('*')
		case !matchCase:
			b.WriteRune(unicode.ToLower(c))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// QueryString applies ToQueryString with p's metacharacters.
func (p Pattern) QueryString(pattern string) string {
	return ToQueryString(p.Escape, p.Wildcard, p.SingleChar, p.MatchCase, pattern)
}

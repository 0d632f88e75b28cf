package temporal

import (
	"fmt"
	"strings"
	"unicode"
)

// goLayoutWords appear verbatim in Go layouts and must not leak in as
// literal text.
var goLayoutWords = []string{"Jan", "Mon", "MST", "PM", "pm"}

// javaToLayout converts a Java/Joda date pattern into a Go time layout.
//
// Letters are grouped into runs ("yyyy", "MM") and each run maps to one
// layout element. Text in single quotes is literal; '' is a quote.
func javaToLayout(pattern string) (string, error) {
	var out strings.Builder
	runes := []rune(pattern)

	for i := 0; i < len(runes); {
		c := runes[i]

		if c == '\'' {
			lit, next, err := quoted(runes, i)
			if err != nil {
				return "", err
			}
			if err := checkLiteral(lit); err != nil {
				return "", err
			}
			out.WriteString(lit)
			i = next
			continue
		}

		if !unicode.IsLetter(c) {
			if unicode.IsDigit(c) {
				return "", fmt.Errorf("%w: literal digit %q", ErrUnsupportedPattern, c)
			}
			out.WriteRune(c)
			i++
			continue
		}

		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		n := j - i

		elem, err := element(c, n, out.String())
		if err != nil {
			return "", err
		}
		out.WriteString(elem)
		i = j
	}
	return out.String(), nil
}

// element maps one run of n identical pattern letters. prev is the layout
// written so far; fractional seconds need the separator before them.
func element(c rune, n int, prev string) (string, error) {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M', 'L':
		switch {
		case n >= 4:
			return "January", nil
		case n == 3:
			return "Jan", nil
		case n == 2:
			return "01", nil
		default:
			return "1", nil
		}
	case 'd':
		if n >= 2 {
			return "02", nil
		}
		return "2", nil
	case 'D':
		return "002", nil
	case 'E':
		if n >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	case 'a':
		return "PM", nil
	case 'H':
		return "15", nil
	case 'h':
		if n >= 2 {
			return "03", nil
		}
		return "3", nil
	case 'm':
		if n >= 2 {
			return "04", nil
		}
		return "4", nil
	case 's':
		if n >= 2 {
			return "05", nil
		}
		return "5", nil
	case 'S':
		if !strings.HasSuffix(prev, ".") && !strings.HasSuffix(prev, ",") {
			return "", fmt.Errorf("%w: fractional seconds must follow '.' or ','", ErrUnsupportedPattern)
		}
		return strings.Repeat("0", n), nil
	case 'Z':
		if n >= 2 {
			return "-07:00", nil
		}
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	case 'z':
		return "MST", nil
	default:
		return "", fmt.Errorf("%w: letter %q", ErrUnsupportedPattern, c)
	}
}

// quoted reads a quoted literal starting at runes[start] == '\''.
func quoted(runes []rune, start int) (string, int, error) {
	if start+1 < len(runes) && runes[start+1] == '\'' {
		return "'", start + 2, nil
	}

	var lit strings.Builder
	for i := start + 1; i < len(runes); i++ {
		if runes[i] != '\'' {
			lit.WriteRune(runes[i])
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '\'' {
			lit.WriteRune('\'')
			i++
			continue
		}
		return lit.String(), i + 1, nil
	}
	return "", 0, fmt.Errorf("%w: unterminated quote", ErrUnsupportedPattern)
}

func checkLiteral(lit string) error {
	for _, r := range lit {
		if unicode.IsDigit(r) {
			return fmt.Errorf("%w: literal digit in %q", ErrUnsupportedPattern, lit)
		}
	}
	for _, w := range goLayoutWords {
		if strings.Contains(lit, w) {
			return fmt.Errorf("%w: literal %q collides with layout element", ErrUnsupportedPattern, lit)
		}
	}
	return nil
}

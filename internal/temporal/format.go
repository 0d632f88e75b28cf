// Package temporal turns instants and periods into the textual bounds the
// search backend compares date fields against.
//
// Attributes may declare a date format in the backend's Java-style pattern
// language (for example "yyyy-MM-dd" or "epoch_millis"). ParseFormat
// converts such a pattern into a Go layout once, when the schema is
// loaded; Format values are immutable and safe to share.
package temporal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLayout renders instants with millisecond precision in UTC.
// Equivalent to the pattern yyyy-MM-dd'T'HH:mm:ss.SSS'Z'.
const DefaultLayout = "2006-01-02T15:04:05.000Z"

// ErrUnsupportedPattern is returned for pattern letters with no Go layout
// equivalent.
var ErrUnsupportedPattern = errors.New("unsupported date pattern")

type epochUnit int

const (
	epochNone epochUnit = iota
	epochMillis
	epochSeconds
)

// Format is a compiled date format.
type Format struct {
	pattern string
	layout  string
	epoch   epochUnit
}

// Default is the format used by attributes that declare none.
var Default = Format{pattern: "yyyy-MM-dd'T'HH:mm:ss.SSS'Z'", layout: DefaultLayout}

// parseLayouts are tried in order for text literals on attributes without a
// declared format.
var parseLayouts = []string{
	time.RFC3339Nano,
	DefaultLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// namedFormats maps the backend's built-in format names.
var namedFormats = map[string]Format{
	"date_optional_time":        Default,
	"strict_date_optional_time": Default,
	"date_time":                 Default,
	"strict_date_time":          Default,
	"date":                      {pattern: "date", layout: "2006-01-02"},
	"strict_date":               {pattern: "strict_date", layout: "2006-01-02"},
	"basic_date":                {pattern: "basic_date", layout: "20060102"},
	"date_hour_minute_second":   {pattern: "date_hour_minute_second", layout: "2006-01-02T15:04:05"},
	"epoch_millis":              {pattern: "epoch_millis", epoch: epochMillis},
	"epoch_second":              {pattern: "epoch_second", epoch: epochSeconds},
}

// ParseFormat compiles a date pattern. A "||"-separated list formats with
// its first entry, which is how the backend itself renders such mappings.
// An empty pattern yields Default.
func ParseFormat(pattern string) (Format, error) {
	first := strings.TrimSpace(strings.SplitN(pattern, "||", 2)[0])
	if first == "" {
		return Default, nil
	}
	if f, ok := namedFormats[first]; ok {
		return f, nil
	}
	layout, err := javaToLayout(first)
	if err != nil {
		return Format{}, fmt.Errorf("date format %q: %w", pattern, err)
	}
	return Format{pattern: first, layout: layout}, nil
}

// MustParseFormat is ParseFormat for package-level fixtures.
func MustParseFormat(pattern string) Format {
	f, err := ParseFormat(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Pattern returns the source pattern.
func (f Format) Pattern() string {
	return f.pattern
}

// IsZero reports whether f is the zero Format, which formats like Default.
func (f Format) IsZero() bool {
	return f.pattern == "" && f.layout == "" && f.epoch == epochNone
}

// Value renders t for use as a term or range bound. Epoch formats yield
// int64; every other format yields a string in UTC.
func (f Format) Value(t time.Time) any {
	switch f.epoch {
	case epochMillis:
		return t.UnixMilli()
	case epochSeconds:
		return t.Unix()
	}
	layout := f.layout
	if layout == "" {
		layout = DefaultLayout
	}
	return t.UTC().Format(layout)
}

// Parse reads text written in f. The zero Format and Default accept any of
// the common ISO-8601 shapes.
func (f Format) Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	switch f.epoch {
	case epochMillis:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q as epoch_millis: %w", text, err)
		}
		return time.UnixMilli(n).UTC(), nil
	case epochSeconds:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q as epoch_second: %w", text, err)
		}
		return time.Unix(n, 0).UTC(), nil
	}

	if f.layout == "" || f.layout == DefaultLayout {
		for _, layout := range parseLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("parse %q: not an ISO-8601 date", text)
	}

	t, err := time.Parse(f.layout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q as %q: %w", text, f.pattern, err)
	}
	return t.UTC(), nil
}

package compiler

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/esfilter/internal/filter"
	"github.com/roach88/esfilter/internal/schema"
	"github.com/roach88/esfilter/internal/temporal"
)

// coerce converts a literal to the representation the backend expects for
// attr. Undeclared attributes keep the literal as given, except that
// instants are rendered in the default date format.
func coerce(attr schema.Attribute, declared bool, field string, v any) (any, error) {
	if !declared {
		return passthrough(field, v)
	}

	switch attr.Type {
	case schema.TypeString:
		return toString(field, v)
	case schema.TypeInteger:
		n, err := toInt(field, v, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case schema.TypeLong:
		return toInt(field, v, 64)
	case schema.TypeDouble:
		return toFloat(field, v, 64)
	case schema.TypeFloat:
		f, err := toFloat(field, v, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case schema.TypeBoolean:
		return toBool(field, v)
	case schema.TypeDate:
		return toDate(field, attr.DateFormat(), v)
	default:
		return nil, invalidLiteral(field, "%s attributes cannot be compared to literals", attr.Type)
	}
}

func passthrough(field string, v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int32, int64, float32, float64:
		return x, nil
	case int:
		return int64(x), nil
	case time.Time:
		return temporal.Default.Value(x), nil
	case filter.Instant:
		return temporal.Default.Value(x.Time), nil
	default:
		return nil, invalidLiteral(field, "unsupported literal %T", v)
	}
}

func toString(field string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	default:
		return "", coercionError(field, v, "string", nil)
	}
}

func toInt(field string, v any, bits int) (int64, error) {
	target := "long"
	if bits == 32 {
		target = "integer"
	}
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if bits == 32 {
		lo, hi = math.MinInt32, math.MaxInt32
	}

	var n int64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, bits)
		if err != nil {
			return 0, coercionError(field, v, target, err)
		}
		return parsed, nil
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float32:
		return toInt(field, float64(x), bits)
	case float64:
		if x != math.Trunc(x) || x < float64(lo) || x > float64(hi) {
			return 0, coercionError(field, v, target, nil)
		}
		n = int64(x)
	default:
		return 0, coercionError(field, v, target, nil)
	}
	if n < lo || n > hi {
		return 0, coercionError(field, v, target, nil)
	}
	return n, nil
}

func toFloat(field string, v any, bits int) (float64, error) {
	target := "double"
	if bits == 32 {
		target = "float"
	}
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), bits)
		if err != nil {
			return 0, coercionError(field, v, target, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, coercionError(field, v, target, nil)
		}
		return f, nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return toFloat(field, float64(x), bits)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, coercionError(field, v, target, nil)
		}
		return x, nil
	default:
		return 0, coercionError(field, v, target, nil)
	}
}

func toBool(field string, v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, coercionError(field, v, "boolean", err)
		}
		return b, nil
	default:
		return false, coercionError(field, v, "boolean", nil)
	}
}

// toDate renders a date literal in the attribute's format. Text is parsed
// first so malformed dates fail here rather than in the backend.
func toDate(field string, f temporal.Format, v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return f.Value(x), nil
	case filter.Instant:
		return f.Value(x.Time), nil
	case string:
		t, err := f.Parse(x)
		if err != nil {
			return nil, coercionError(field, v, "date", err)
		}
		return f.Value(t), nil
	case int, int32, int64:
		ms, _ := toInt(field, x, 64)
		return f.Value(time.UnixMilli(ms)), nil
	case filter.Period:
		return nil, invalidLiteral(field, "a period cannot be compared; use a temporal relation")
	default:
		return nil, coercionError(field, v, "date", nil)
	}
}

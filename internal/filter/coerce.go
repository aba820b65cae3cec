package filter

import (
	"strconv"
	"strings"
)

// CoerceValue converts a raw request value (or list of values) into the
// representation the predicate layer expects for the given semantic type.
// List inputs are coerced element-wise. Coercion never fails: unparsable
// integers and decimals coerce to zero, preserved for compatibility with
// lenient clients.
func CoerceValue(value any, fieldType SemanticType) any {
	switch fieldType {
	case TypeBoolean:
		return coerceEach(value, coerceBool)
	case TypeInteger:
		return coerceEach(value, coerceInt)
	case TypeDecimal:
		return coerceEach(value, coerceFloat)
	default:
		return value
	}
}

func coerceEach(value any, conv func(any) any) any {
	switch vs := value.(type) {
	case []string:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = conv(v)
		}
		return out
	case []any:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = conv(v)
		}
		return out
	default:
		return conv(value)
	}
}

var truthyStrings = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "1": true,
}

func coerceBool(v any) any {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return truthyStrings[strings.ToLower(val)]
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}

func coerceInt(v any) any {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func coerceFloat(v any) any {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

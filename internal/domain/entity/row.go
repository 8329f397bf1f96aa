package entity

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeRow checks a row against the schema and coerces values to the field types.
// Missing fields become null. Unknown fields are rejected.
func (s Schema) NormalizeRow(row Row) (Row, error) {
	for name := range row {
		if _, ok := s[name]; !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}

	out := make(Row, len(s))
	for name, typ := range s {
		v, ok := row[name]
		if !ok || v == nil {
			out[name] = nil
			continue
		}
		coerced, err := coerce(typ, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerce(typ FieldType, v any) (any, error) {
	switch typ {
	case FieldString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
	case FieldInteger:
		switch x := v.(type) {
		case float64:
			if x == math.Trunc(x) {
				return int64(x), nil
			}
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n, nil
			}
		}
	case FieldNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		}
	case FieldBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("value %v is not a valid %s", v, typ)
}

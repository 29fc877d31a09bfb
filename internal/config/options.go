package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Options is a loosely-typed option bag decoded from JSON config sections.
// Accessors are total: they return the provided default instead of failing,
// so callers can keep option handling out of their error paths.
type Options map[string]any

// Any returns the raw value for key, or nil when absent.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns the value for key as a string, or def when absent or not
// representable as a string.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return def
	}
}

// Bool returns the value for key as a bool. String forms "true"/"false"
// (any case) are accepted because hand-written JSON configs often quote them.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns the value for key as an int. JSON numbers decode as float64,
// so both numeric and quoted-number forms are handled.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Float returns the value for key as a float64.
func (o Options) Float(key string, def float64) float64 {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Rune returns the first rune of a string-valued option. JSON escapes such as
// "\t" decode to the real rune before this accessor sees them.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns a map-valued option with string values. Non-string values
// are skipped rather than coerced.
func (o Options) StringMap(key string) map[string]string {
	v, ok := o[key]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

// StringSlice returns a list-valued option as []string. A bare string value
// is treated as a single-element list.
func (o Options) StringSlice(key string) []string {
	v, ok := o[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

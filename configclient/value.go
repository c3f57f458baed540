package configclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/campushq/corekit/errors"
)

// Value is one configuration value as delivered by the configuration
// service. The zero Value reports false for Exists.
type Value struct {
	raw    any
	exists bool
}

// NewValue wraps a raw value.
func NewValue(raw any) Value {
	return Value{raw: raw, exists: true}
}

// Exists reports whether the value was present at all.
func (v Value) Exists() bool { return v.exists }

// Raw returns the value as delivered.
func (v Value) Raw() any { return v.raw }

// String returns the value as a string, or def when absent or unconvertible.
func (v Value) String(def string) string {
	if !v.exists {
		return def
	}
	switch t := v.raw.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return def
	}
}

// Int returns the value as an int, or def when absent or unconvertible.
// JSON numbers arrive as float64; fractional values do not convert.
func (v Value) Int(def int) int {
	if !v.exists {
		return def
	}
	switch t := v.raw.(type) {
	case int:
		return t
	case float64:
		if t == float64(int(t)) {
			return int(t)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// Float returns the value as a float64, or def when absent or unconvertible.
func (v Value) Float(def float64) float64 {
	if !v.exists {
		return def
	}
	switch t := v.raw.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the value as a bool, or def when absent or unconvertible.
func (v Value) Bool(def bool) bool {
	if !v.exists {
		return def
	}
	switch t := v.raw.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// AsString returns the value as a string, failing with a validation error
// when the value is absent or not a string.
func (v Value) AsString() (string, error) {
	if !v.exists {
		return "", errors.Validation("value is absent")
	}
	s, ok := v.raw.(string)
	if !ok {
		return "", errors.Validation(fmt.Sprintf("expected string, got %T", v.raw))
	}
	return s, nil
}

// AsInt returns the value as an int, failing with a validation error when the
// value is absent or not a whole number.
func (v Value) AsInt() (int, error) {
	if !v.exists {
		return 0, errors.Validation("value is absent")
	}
	switch t := v.raw.(type) {
	case int:
		return t, nil
	case float64:
		if t == float64(int(t)) {
			return int(t), nil
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
	}
	return 0, errors.Validation(fmt.Sprintf("expected integer, got %T (%v)", v.raw, v.raw))
}

// AsBool returns the value as a bool, failing with a validation error when
// the value is absent or not a boolean.
func (v Value) AsBool() (bool, error) {
	if !v.exists {
		return false, errors.Validation("value is absent")
	}
	b, ok := v.raw.(bool)
	if !ok {
		return false, errors.Validation(fmt.Sprintf("expected boolean, got %T", v.raw))
	}
	return b, nil
}

// Duration returns the value parsed as a time.Duration, or def. Numeric
// values are interpreted as seconds.
func (v Value) Duration(def time.Duration) time.Duration {
	if !v.exists {
		return def
	}
	switch t := v.raw.(type) {
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d
		}
	case float64:
		return time.Duration(t * float64(time.Second))
	case int:
		return time.Duration(t) * time.Second
	}
	return def
}

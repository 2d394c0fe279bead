/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package params

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Extract extracts a required value from args with type safety.
// Returns an error if the value is missing or cannot be converted to T.
func Extract[T any](args map[string]any, name string) (T, error) {
	var zero T

	value, exists := args[name]
	if !exists {
		return zero, fmt.Errorf("%s parameter is required", name)
	}
	if v, ok := convert[T](value); ok {
		return v, nil
	}
	return zero, fmt.Errorf("%s parameter must be of type %T, got %T", name, zero, value)
}

// ExtractOptional extracts an optional value with a default.
// Returns the default if the value doesn't exist or is null, or an error if
// type conversion fails.
func ExtractOptional[T any](args map[string]any, name string, defaultValue T) (T, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return defaultValue, nil
	}
	if v, ok := convert[T](value); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%s parameter must be of type %T, got %T", name, zero, value)
}

// Lenient returns the value of name converted to T, or defaultValue when it
// is missing or of another type.
func Lenient[T any](args map[string]any, name string, defaultValue T) T {
	v, err := ExtractOptional(args, name, defaultValue)
	if err != nil {
		return defaultValue
	}
	return v
}

func convert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	return convertNumeric[T](value)
}

// convertNumeric handles JSON numeric conversions (float64 or json.Number to int/int32/int64/float64).
func convertNumeric[T any](value any) (T, bool) {
	var zero T

	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return zero, false
		}
		f = parsed
	default:
		return zero, false
	}

	switch any(zero).(type) {
	case int:
		return any(int(f)).(T), true
	case int32:
		return any(int32(f)).(T), true
	case int64:
		return any(int64(f)).(T), true
	case float64:
		return any(f).(T), true
	}
	return zero, false
}

// Error creates an error response map.
func Error(format string, args ...any) map[string]any {
	return map[string]any{
		"error": fmt.Sprintf(format, args...),
	}
}

// ErrorWithContext creates an error response with additional context fields.
func ErrorWithContext(err error, context map[string]any) map[string]any {
	response := map[string]any{
		"error": err.Error(),
	}
	maps.Copy(response, context)
	return response
}

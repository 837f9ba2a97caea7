// Package normalization maps free-form configuration strings onto enum values.
package normalization

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

// Enum resolves case-insensitive, whitespace-tolerant spellings of an enum.
type Enum[T comparable] struct {
	name     string
	values   map[string]T
	keys     []string
	fallback T
}

// NewEnum builds an Enum named name (used in error messages). Keys of values
// are cleaned the same way input is; fallback is returned by Normalize for
// unknown input.
func NewEnum[T comparable](name string, values map[string]T, fallback T) *Enum[T] {
	e := &Enum[T]{
		name:     name,
		values:   make(map[string]T, len(values)),
		keys:     make([]string, 0, len(values)),
		fallback: fallback,
	}
	for k, v := range values {
		key := clean(k)
		e.values[key] = v
		e.keys = append(e.keys, key)
	}
	slices.Sort(e.keys)
	return e
}

// Normalize returns the value for raw, or the fallback when raw is unknown.
func (e *Enum[T]) Normalize(raw string) T {
	if v, ok := e.values[clean(raw)]; ok {
		return v
	}
	return e.fallback
}

// Parse returns the value for raw or a config error listing the accepted spellings.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, errors.ConfigError(fmt.Sprintf("invalid %s %q (valid: %s)", e.name, raw, strings.Join(e.keys, ", "))).
		WithContext("value", raw).
		Build()
}

// Keys returns the accepted spellings in sorted order.
func (e *Enum[T]) Keys() []string {
	return slices.Clone(e.keys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

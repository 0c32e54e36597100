// Package normalization converts free-form configuration strings into typed
// enum values. Hand-edited YAML arrives with stray case and whitespace, so
// every enum in the config package funnels through a Normalizer to keep the
// cleanup rules in one place.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps cleaned-up strings onto values of a single enum type.
type Normalizer[T comparable] struct {
	values   map[string]T
	fallback T
	keys     []string // sorted, for stable error messages
}

// NewNormalizer builds a Normalizer from canonical spelling -> value pairs.
// Lookups trim whitespace and lowercase before matching; input that matches
// nothing resolves to fallback.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	cleaned := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		ck := canonical(k)
		cleaned[ck] = v
		keys = append(keys, ck)
	}
	sort.Strings(keys)
	return &Normalizer[T]{values: cleaned, fallback: fallback, keys: keys}
}

// Normalize converts raw input to its enum value, using the fallback for
// anything unrecognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[canonical(raw)]; ok {
		return v
	}
	return n.fallback
}

// Lookup converts raw input to its enum value and reports whether it matched.
// Callers that must distinguish "unknown" from the fallback value use this.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.values[canonical(raw)]
	if !ok {
		return n.fallback, false
	}
	return v, true
}

// NormalizeWithError converts raw input, listing the accepted spellings when
// it matches nothing.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.values[canonical(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.keys)
}

// ValidKeys returns the canonical spellings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Package sets provides the small membership set used for duplicate
// detection in config validation and link-warning deduplication.
package sets

// Set is a hash set over comparable keys.
type Set[T comparable] map[T]struct{}

// New returns a set containing vals.
func New[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v.
func (s Set[T]) Add(v T) { s[v] = struct{}{} }

// Has reports whether v is present.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

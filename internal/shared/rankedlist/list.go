// Package rankedlist provides a bounded, identity-keyed collection that keeps
// itself stably sorted by a numeric rank while its members are patched in place.
//
// A List is not safe for concurrent use; owners serialize access.
package rankedlist

import (
	"cmp"
	"slices"
)

// Direction is the sort direction of a List.
type Direction int

const (
	// Descending puts the largest rank first.
	Descending Direction = iota
	// Ascending puts the smallest rank first.
	Ascending
)

// String returns "desc" or "asc".
func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// List keeps items ordered by rank. Ties keep their previous relative order.
type List[K comparable, T any] struct {
	key   func(T) K
	rank  func(T) float64
	dir   Direction
	items []T
	index map[K]int
}

// New creates an empty List. key extracts the identity and rank the sort value.
func New[K comparable, T any](key func(T) K, rank func(T) float64, dir Direction) *List[K, T] {
	return &List[K, T]{
		key:   key,
		rank:  rank,
		dir:   dir,
		index: make(map[K]int),
	}
}

// Reset replaces the whole working set and stably sorts it.
// Later duplicates of an identity are dropped.
func (l *List[K, T]) Reset(items []T) {
	l.items = make([]T, 0, len(items))
	seen := make(map[K]struct{}, len(items))
	for _, it := range items {
		k := l.key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		l.items = append(l.items, it)
	}
	l.sort()
}

// Len returns the number of items.
func (l *List[K, T]) Len() int {
	return len(l.items)
}

// Direction returns the sort direction.
func (l *List[K, T]) Direction() Direction {
	return l.dir
}

// Get returns the item for k.
func (l *List[K, T]) Get(k K) (T, bool) {
	i, ok := l.index[k]
	if !ok {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Contains reports whether k is in the working set.
func (l *List[K, T]) Contains(k K) bool {
	_, ok := l.index[k]
	return ok
}

// Patch applies fn to the item identified by k without re-sorting.
// found is false when k is unknown; rankChanged reports whether the rank moved.
func (l *List[K, T]) Patch(k K, fn func(*T)) (found, rankChanged bool) {
	i, ok := l.index[k]
	if !ok {
		return false, false
	}
	before := l.rank(l.items[i])
	fn(&l.items[i])
	if l.key(l.items[i]) != k {
		panic("rankedlist: patch changed item identity")
	}
	return true, l.rank(l.items[i]) != before
}

// Update patches one item and re-sorts when its rank changed.
// It reports whether the item was found and whether the order was recomputed.
func (l *List[K, T]) Update(k K, fn func(*T)) (found, resorted bool) {
	found, changed := l.Patch(k, fn)
	if changed {
		l.sort()
	}
	return found, changed
}

// Resort stably re-sorts the working set. Owners call it after a batch of Patch calls.
func (l *List[K, T]) Resort() {
	l.sort()
}

// Items returns a copy of the working set in rank order.
func (l *List[K, T]) Items() []T {
	return slices.Clone(l.items)
}

// Keys returns the identities in rank order.
func (l *List[K, T]) Keys() []K {
	out := make([]K, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, l.key(it))
	}
	return out
}

func (l *List[K, T]) sort() {
	slices.SortStableFunc(l.items, func(a, b T) int {
		if l.dir == Ascending {
			return cmp.Compare(l.rank(a), l.rank(b))
		}
		return cmp.Compare(l.rank(b), l.rank(a))
	})
	clear(l.index)
	for i, it := range l.items {
		l.index[l.key(it)] = i
	}
}

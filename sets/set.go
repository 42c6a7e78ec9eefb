package sets

import (
	"sort"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"

	"github.com/mel2oo/tlsprobe/optionals"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable](vs ...T) Set[T] {
	s := make(Set[T], len(vs))
	s.Insert(vs...)
	return s
}

func (s Set[T]) IsEmpty() bool {
	return len(s) == 0
}

func (s Set[T]) Size() int {
	return len(s)
}

// Returns Some(v) if s contains v, None otherwise.
func (s Set[T]) Get(v T) optionals.Optional[T] {
	if s.Contains(v) {
		return optionals.Some(v)
	}
	return optionals.None[T]()
}

func (s Set[T]) Contains(v T) bool {
	_, exists := s[v]
	return exists
}

// True if any of vs is in s. False for an empty vs.
func (s Set[T]) ContainsAny(vs ...T) bool {
	for _, v := range vs {
		if s.Contains(v) {
			return true
		}
	}
	return false
}

func (s Set[T]) Insert(vs ...T) {
	for _, v := range vs {
		s[v] = struct{}{}
	}
}

func (s Set[T]) AsSlice() []T {
	return maps.Keys(s)
}

// Members of s in ascending order.
func Sorted[T constraints.Ordered](s Set[T]) []T {
	rv := s.AsSlice()
	sort.Slice(rv, func(i, j int) bool { return rv[i] < rv[j] })
	return rv
}

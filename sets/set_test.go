package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicSetOperations(t *testing.T) {
	s := NewSet[string]()
	assert.True(t, s.IsEmpty())

	s.Insert("example.com", "example.org", "example.com")
	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Contains("example.com"))
	assert.False(t, s.Contains("example.net"))
}

func TestContainsAny(t *testing.T) {
	s := NewSet("example.com")

	assert.True(t, s.ContainsAny("example.net", "example.com"))
	assert.False(t, s.ContainsAny("example.net"))
	assert.False(t, s.ContainsAny())
}

func TestGet(t *testing.T) {
	s := NewSet(1, 2)

	v, ok := s.Get(2).Get()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	assert.True(t, s.Get(3).IsNone())
}

func TestSorted(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Sorted(NewSet(3, 1, 2)))
	assert.Empty(t, Sorted(NewSet[string]()))
}

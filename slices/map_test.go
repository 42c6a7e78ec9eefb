package slices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	type testStruct struct {
		F1 string
	}

	getF1 := func(s testStruct) string {
		return s.F1
	}

	testCases := []struct {
		name     string
		slice    []testStruct
		expected []string
	}{
		{
			name:     "nil slice",
			slice:    nil,
			expected: []string{},
		},
		{
			name:     "field projection",
			slice:    []testStruct{{F1: "1"}, {F1: "2"}},
			expected: []string{"1", "2"},
		},
	}

	for _, tc := range testCases {
		actual := Map(tc.slice, getF1)
		assert.NotNil(t, actual, tc.name)
		assert.Equal(t, tc.expected, actual, tc.name)
	}
}

func TestFilter(t *testing.T) {
	even := func(i int) bool { return i%2 == 0 }

	assert.Equal(t, []int{}, Filter(nil, even))
	assert.Equal(t, []int{2, 4}, Filter([]int{1, 2, 3, 4, 5}, even))

	// Composes with Map.
	assert.Equal(t, []string{"2", "4"}, Map(Filter([]int{1, 2, 3, 4}, even), strconv.Itoa))
}

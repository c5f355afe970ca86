package slices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	t.Run("it should map every element", func(t *testing.T) {
		// WHEN
		result := Map([]int{1, 2, 3}, strconv.Itoa)

		// THEN
		assert.Equal(t, []string{"1", "2", "3"}, result)
	})
}

func TestIndexFunc(t *testing.T) {
	t.Run("it should return the first matching index or -1", func(t *testing.T) {
		// GIVEN
		values := []string{"a", "b", "b"}

		// THEN
		assert.Equal(t, 1, IndexFunc(values, func(s string) bool { return s == "b" }))
		assert.Equal(t, -1, IndexFunc(values, func(s string) bool { return s == "z" }))
	})
}

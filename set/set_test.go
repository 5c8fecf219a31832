package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	t.Run("it should start empty", func(t *testing.T) {
		// WHEN
		s := New[string]()

		// THEN
		assert.Equal(t, 0, s.Size())
		assert.True(t, s.DoesNotContain("engine"))
	})

	t.Run("it should keep a value once", func(t *testing.T) {
		// GIVEN
		s := NewWithValues("engine", "wheel")

		// WHEN
		s.Add("engine")

		// THEN
		assert.Equal(t, 2, s.Size())
		assert.True(t, s.Contains("engine"))
		assert.True(t, s.Contains("wheel"))
		assert.False(t, s.Contains("car"))
	})

	t.Run("it should remove a value", func(t *testing.T) {
		// GIVEN
		s := NewWithValues("engine", "wheel")

		// WHEN
		s.Remove("engine")
		s.Remove("car")

		// THEN
		assert.Equal(t, 1, s.Size())
		assert.True(t, s.DoesNotContain("engine"))
	})

	t.Run("it should compare struct values", func(t *testing.T) {
		// GIVEN
		type key struct {
			name  string
			index int
		}
		s := New[key]()

		// WHEN
		s.Add(key{name: "plugin", index: 1})

		// THEN
		assert.True(t, s.Contains(key{name: "plugin", index: 1}))
		assert.True(t, s.DoesNotContain(key{name: "plugin", index: 2}))
	})
}

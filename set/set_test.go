package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	var s Set[string]

	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())

	s.Insert("a")
	s.Insert("a")
	s.Insert("b")

	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.Equal(t, 2, s.Len())

	s.Remove("a")
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 1, s.Len())

	s.Remove("missing")
	assert.Equal(t, 1, s.Len())
}

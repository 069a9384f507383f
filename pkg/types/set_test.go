package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSetMarshalSorted(t *testing.T) {
	s := NewStringSet("charlie", "alpha", "bravo")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["alpha","bravo","charlie"]`, string(data))
}

func TestStringSetUnmarshalAnyOrder(t *testing.T) {
	var s StringSet
	err := json.Unmarshal([]byte(`["b","a","b"]`), &s)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
}

func TestStringSetOperations(t *testing.T) {
	s := NewStringSet("a")
	s.Add("b")
	s.Add("b")
	assert.Equal(t, 2, s.Len())

	s.Remove("a")
	assert.False(t, s.Contains("a"))

	other := NewStringSet("c", "d")
	s.Union(other)
	assert.Equal(t, []string{"b", "c", "d"}, s.Values())

	clone := s.Clone()
	clone.Remove("b")
	assert.True(t, s.Contains("b"))
	assert.False(t, clone.Contains("b"))
}

package scratch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnsetPointer(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get(ActiveSession)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetClear(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set(SettingsHash, "abc123"))
	v, ok, err := s.Get(SettingsHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc123", v)

	require.NoError(t, s.Set(SettingsHash, "def456"))
	v, ok, err = s.Get(SettingsHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "def456", v)

	require.NoError(t, s.Clear(SettingsHash))
	_, ok, err = s.Get(SettingsHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

package tasks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyShape(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	assert.Len(t, key, keyLength)
	for _, r := range key {
		assert.True(t, strings.ContainsRune(keyAlphabet, r), "unexpected character %q in key %s", r, key)
	}
}

func TestNewKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key, err := NewKey()
		require.NoError(t, err)
		require.False(t, seen[key], "duplicate key after %d draws", i)
		seen[key] = true
	}
}

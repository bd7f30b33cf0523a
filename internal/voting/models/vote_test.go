package models

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredential(t *testing.T) {
	credential, err := NewCredential()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(credential)
	require.NoError(t, err, "credential must be URL-safe base64")
	assert.Len(t, raw, 30)

	// No padding and nothing a URL would mangle.
	assert.NotContains(t, credential, "=")
	assert.NotContains(t, credential, "+")
	assert.NotContains(t, credential, "/")
}

func TestNewCredentialIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		credential, err := NewCredential()
		require.NoError(t, err)
		assert.False(t, seen[credential], "credential repeated")
		seen[credential] = true
	}
}

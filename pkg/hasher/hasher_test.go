package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword([]byte("open sesame"))
	require.NoError(t, err)

	assert.True(t, PasswordCorrect("open sesame", hash))
	assert.False(t, PasswordCorrect("open says me", hash))
}

func TestGenerateToken_Unique(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

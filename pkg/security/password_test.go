package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/security"
)

func fastParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("123456", fastParams())
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.Contains(t, hash, "$argon2id$v=19$m=8192,t=1,p=1$")

	ok, err := security.VerifyPassword("123456", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("654321", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := security.HashPassword("123456", fastParams())
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ per hash")
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", fastParams())
	assert.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	assert.ErrorIs(t, err, security.ErrInvalidHash)
}

func TestNeedsRehash(t *testing.T) {
	weak := fastParams()
	hash, err := security.HashPassword("123456", weak)
	require.NoError(t, err)

	assert.False(t, security.NeedsRehash(hash, weak))

	stronger := weak
	stronger.ArgonMemoryKB = 16384
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", weak))
}

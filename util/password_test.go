package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerifyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	assert.NoError(t, err)
	assert.NotEmpty(t, salt)

	hash, err := HashPasswordArgon2("secreto1", salt)
	assert.NoError(t, err)
	assert.Contains(t, hash, "argon2id$")

	ok, err := VerifyPassword("secreto1", hash, salt)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("incorrecta", hash, salt)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordArgon2_EmptyPassword(t *testing.T) {
	salt, err := GenerateSalt()
	assert.NoError(t, err)

	_, err = HashPasswordArgon2("", salt)
	assert.Error(t, err)
}

func TestVerifyPassword_UnsupportedScheme(t *testing.T) {
	salt, err := GenerateSalt()
	assert.NoError(t, err)

	_, err = VerifyPassword("secreto1", "bcrypt$whatever", salt)
	assert.Error(t, err)
}

func TestGenerateSalt_Distinct(t *testing.T) {
	a, err := GenerateSalt()
	assert.NoError(t, err)
	b, err := GenerateSalt()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSetJWTSecret(t *testing.T) {
	SetJWTSecret("primera")
	assert.Equal(t, []byte("primera"), GetJWTSecretByte())

	SetJWTSecret("segunda")
	assert.Equal(t, []byte("segunda"), GetJWTSecretByte())
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "freeApiluminascalem!+|I1,R1u31C_V"

func TestValidate_CorrectSecret(t *testing.T) {
	v := NewValidator(testSecret, "freeApiluminascalem")

	assert.NoError(t, v.Validate(testSecret))
}

func TestValidate_MissingKey(t *testing.T) {
	v := NewValidator(testSecret, "freeApiluminascalem")

	assert.ErrorIs(t, v.Validate(""), ErrMissingKey)
	assert.ErrorIs(t, v.Validate("   "), ErrMissingKey)
	assert.ErrorIs(t, v.Validate("\t\n"), ErrMissingKey)
}

func TestValidate_WrongKey(t *testing.T) {
	v := NewValidator(testSecret, "freeApiluminascalem")

	assert.ErrorIs(t, v.Validate("not-the-key"), ErrInvalidKey)

	// A prefix of the real secret is just as invalid as a random string.
	assert.ErrorIs(t, v.Validate(testSecret[:len(testSecret)-1]), ErrInvalidKey)
	assert.ErrorIs(t, v.Validate(testSecret[:4]), ErrInvalidKey)

	// Longer than the real secret.
	assert.ErrorIs(t, v.Validate(testSecret+"x"), ErrInvalidKey)
}

func TestValidate_CaseSensitive(t *testing.T) {
	v := NewValidator("SecretKey", "key")

	assert.ErrorIs(t, v.Validate("secretkey"), ErrInvalidKey)
	assert.NoError(t, v.Validate("SecretKey"))
}

func TestKeyName(t *testing.T) {
	v := NewValidator(testSecret, "freeApiluminascalem")

	assert.Equal(t, "freeApiluminascalem", v.KeyName())
}

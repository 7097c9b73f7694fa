// Package auth validates the single shared free-tier API key.
//
// There is deliberately no key database here. One secret is configured at
// process start; every caller that presents it shares one quota identity.
// Rate limiting of failed attempts belongs to the quota layer, not here.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrMissingKey indicates no key (or a blank one) was presented.
	ErrMissingKey = errors.New("missing or empty API key")
	// ErrInvalidKey indicates the presented key does not match the configured secret.
	ErrInvalidKey = errors.New("invalid API key")
)

// Validator checks presented credentials against the configured secret.
// Only the sha256 digest of the secret is retained, so neither logs nor
// comparisons ever touch the raw value, and the comparison runs over a
// fixed 32-byte shape regardless of what the caller sent.
type Validator struct {
	digest  [sha256.Size]byte
	keyName string
}

// NewValidator builds a validator from the configured secret and the
// logical name used as the shared quota identity.
func NewValidator(secret, keyName string) *Validator {
	return &Validator{
		digest:  sha256.Sum256([]byte(secret)),
		keyName: keyName,
	}
}

// Validate checks a presented API key. It returns nil for a match,
// ErrMissingKey for an absent or all-whitespace key, and ErrInvalidKey
// otherwise. The digest comparison is constant-time.
func (v *Validator) Validate(presented string) error {
	if strings.TrimSpace(presented) == "" {
		return ErrMissingKey
	}

	d := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(d[:], v.digest[:]) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// KeyName returns the fixed logical name of the shared free-tier key.
func (v *Validator) KeyName() string {
	return v.keyName
}

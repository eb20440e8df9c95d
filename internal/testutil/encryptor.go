package testutil

import (
	"sehri-go/internal/encryption"
	"sehri-go/internal/sehri"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() sehri.Encryptor {
	return encryption.NewTestEncryptor()
}

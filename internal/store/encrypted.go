package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"sehri-go/internal/sehri"
)

// ErrLocked is returned when reading an encrypted store without an unlocked key.
var ErrLocked = errors.New("encrypted store is locked")

// EncryptedStore encrypts values before handing them to the wrapped store.
// Keys stay in plaintext so backends can still address them. Values are
// written as base64 ciphertext.
type EncryptedStore struct {
	inner sehri.Store
	enc   sehri.Encryptor
	dec   sehri.DecryptionContext
}

// NewEncryptedStore wraps inner. dec may be nil, in which case the store is
// write-only until Unlock succeeds.
func NewEncryptedStore(inner sehri.Store, enc sehri.Encryptor, dec sehri.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, dec: dec}
}

// Unlock unlocks the private key with passphrase so values can be read.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking store: %w", err)
	}
	s.dec = dec
	return nil
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	if s.dec == nil {
		return "", false, ErrLocked
	}
	ciphertext, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("decoding %q: %w", key, err)
	}
	var plain bytes.Buffer
	if err := s.dec.Decrypt(bytes.NewReader(ciphertext), &plain); err != nil {
		return "", false, fmt.Errorf("decrypting %q: %w", key, err)
	}
	return plain.String(), true, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	var ciphertext bytes.Buffer
	if err := s.enc.Encrypt(strings.NewReader(value), &ciphertext); err != nil {
		return fmt.Errorf("encrypting %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(ciphertext.Bytes()))
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

var _ sehri.Store = (*EncryptedStore)(nil)

package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"sehri-go/internal/sehri"
)

// ErrWrongPassphrase is returned by TestEncryptor.Unlock on a mismatch.
var ErrWrongPassphrase = errors.New("wrong passphrase")

var fakeMagic = []byte("SEHRI\x00v1")

// TestEncryptor frames values with a fixed magic prefix and reverses the
// payload bytes. It is deterministic and needs no key files. When a
// passphrase was given to Setup, Unlock checks it.
type TestEncryptor struct {
	passphrase string
}

var _ sehri.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading plaintext: %w", err)
	}
	reverse(data)
	if _, err := w.Write(append(append([]byte{}, fakeMagic...), data...)); err != nil {
		return fmt.Errorf("writing ciphertext: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (sehri.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext undoes TestEncryptor.
type TestDecryptionContext struct{}

var _ sehri.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	payload, ok := bytes.CutPrefix(data, fakeMagic)
	if !ok {
		return fmt.Errorf("missing test encryption header")
	}
	reverse(payload)
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing plaintext: %w", err)
	}
	return nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

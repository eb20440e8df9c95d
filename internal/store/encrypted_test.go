package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sehri-go/internal/encryption"
)

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	enc := encryption.NewTestEncryptor()
	if err := enc.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	s := NewEncryptedStore(inner, enc, nil)

	if err := s.Set(ctx, "location.saved", `{"latitude":24.37}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, ok, _ := inner.Get(ctx, "location.saved")
	if !ok {
		t.Fatal("inner store has no value")
	}
	if strings.Contains(raw, "latitude") {
		t.Errorf("inner value %q holds plaintext", raw)
	}

	if _, _, err := s.Get(ctx, "location.saved"); !errors.Is(err, ErrLocked) {
		t.Fatalf("Get() while locked error = %v, want ErrLocked", err)
	}
	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing) while locked = ok %v, err %v; want missing", ok, err)
	}

	if err := s.Unlock("wrong"); err == nil {
		t.Fatal("Unlock(wrong) expected error")
	}
	if err := s.Unlock("pw"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "location.saved")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got != `{"latitude":24.37}` {
		t.Errorf("Get() = %q", got)
	}

	if err := s.Delete(ctx, "location.saved"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if inner.Len() != 0 {
		t.Errorf("inner Len() = %d after Delete, want 0", inner.Len())
	}
}

func TestEncryptedStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	inner.Set(ctx, "k", "%%% not base64")
	s := NewEncryptedStore(inner, encryption.NewTestEncryptor(), encryption.TestDecryptionContext{})

	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("Get() on corrupt value expected error")
	}
}

package testutil

import (
	"context"
	"errors"

	"sehri-go/internal/sehri"
	"sehri-go/internal/store"
)

// NewTestStore creates a new in-memory store for testing.
func NewTestStore() *store.MemoryStore {
	return store.NewMemoryStore()
}

// FailingStore rejects every operation, simulating a broken persistence medium.
type FailingStore struct{}

var errStoreBroken = errors.New("store unavailable")

func (FailingStore) Get(context.Context, string) (string, bool, error) { return "", false, errStoreBroken }
func (FailingStore) Set(context.Context, string, string) error         { return errStoreBroken }
func (FailingStore) Delete(context.Context, string) error              { return errStoreBroken }

var _ sehri.Store = FailingStore{}

package sehri

import (
	"context"
	"encoding/json"
)

// Store is the keyed persistence collaborator. Values are opaque strings.
// Backends live in internal/store.
type Store interface {
	// Get returns the value stored under key.
	// A missing key is reported as ("", false, nil), not as an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Persistence keys shared by the engine components.
const (
	keySavedLocation  = "location.saved"
	keyLastLocation   = "location.last"
	keyReminder       = "reminder.active"
	keySchedulePrefix = "schedule:"
	keyCalendarPrefix = "calendar:"
)

// loadJSON reads and decodes the value under key. Read and decode failures are
// logged and reported as absent: persistence is best-effort.
func loadJSON[T any](ctx context.Context, s Store, logger Logger, key string) (T, bool) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		logger.Warn("store read failed", "key", key, "error", err)
		return out, false
	}
	if !ok || raw == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Warn("stored value is corrupt", "key", key, "error", err)
		return out, false
	}
	return out, true
}

// saveJSON encodes v and writes it under key. It reports whether the write
// succeeded; failures are logged, never returned.
func saveJSON(ctx context.Context, s Store, logger Logger, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("encoding value for store", "key", key, "error", err)
		return false
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		logger.Warn("store write failed", "key", key, "error", err)
		return false
	}
	return true
}

// deleteKey removes key, logging failures.
func deleteKey(ctx context.Context, s Store, logger Logger, key string) {
	if err := s.Delete(ctx, key); err != nil {
		logger.Warn("store delete failed", "key", key, "error", err)
	}
}

package sehri

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
)

// Clock abstracts time retrieval so temporal derivation is deterministic in tests.
// clock.Clock and clock.FakeClock from github.com/jmhodges/clock satisfy it.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the process wall clock.
func SystemClock() Clock { return clock.New() }

// Timer is a pending deferred callback.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d. It is the deferred-timer primitive used
// by the reminder scheduler.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc arms a runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

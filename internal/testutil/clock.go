package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"sehri-go/internal/sehri"
)

// FixedClock returns a fake clock set to 2026-03-01 10:30:00 in Asia/Dhaka.
func FixedClock() clock.FakeClock {
	return ClockAt(time.Date(2026, 3, 1, 10, 30, 0, 0, Dhaka()))
}

// ClockAt returns a fake clock set to t.
func ClockAt(t time.Time) clock.FakeClock {
	c := clock.NewFake()
	c.Set(t)
	return c
}

// Dhaka is a fixed UTC+6 zone so tests do not depend on the host tzdata.
func Dhaka() *time.Location {
	return time.FixedZone("BDT", 6*60*60)
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}

// ManualTimers is a deterministic sehri.AfterFunc. Timers fire only from
// Advance, synchronously, in deadline order.
type ManualTimers struct {
	clock clock.FakeClock

	mu     sync.Mutex
	timers []*manualTimer
}

// NewManualTimers creates timers driven by c.
func NewManualTimers(c clock.FakeClock) *ManualTimers {
	return &ManualTimers{clock: c}
}

type manualTimer struct {
	owner    *ManualTimers
	deadline time.Time
	f        func()
	done     bool
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// AfterFunc registers f to run once the clock has advanced by d.
func (m *ManualTimers) AfterFunc(d time.Duration, f func()) sehri.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{owner: m, deadline: m.clock.Now().Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d and runs every timer now due.
func (m *ManualTimers) Advance(d time.Duration) {
	m.clock.Add(d)
	now := m.clock.Now()

	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.done && !t.deadline.After(now) {
			t.done = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (m *ManualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// NextDeadline returns the earliest pending deadline.
func (m *ManualTimers) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range m.timers {
		if t.done {
			continue
		}
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

package sehri

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Snapshot is a persisted cache entry.
type Snapshot[T any] struct {
	Payload    T         `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
	SourceKey  string    `json:"source_key"`
}

// EventKind classifies the outcome of a background refresh.
type EventKind string

const (
	// EventUpdated: the refresh succeeded and its snapshot was persisted.
	EventUpdated EventKind = "updated"
	// EventStale: the refresh failed; the existing snapshot is still served.
	EventStale EventKind = "stale"
	// EventFailed: the refresh failed and there is no snapshot at all.
	EventFailed EventKind = "failed"
	// EventSuperseded: the refresh succeeded but a later-issued refresh had
	// already committed, so its result was discarded.
	EventSuperseded EventKind = "superseded"
)

// Event reports the completion of one refresh. Snapshot is the snapshot the
// caller should now display (nil for EventFailed).
type Event[T any] struct {
	Kind     EventKind
	Key      string
	Snapshot *Snapshot[T]
	Err      error
}

// Fetcher loads a fresh payload from the time source.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Lookup is the result of Cache.Get: the provisional snapshot (nil when
// nothing was persisted) and a channel that delivers exactly one Event and is
// then closed.
type Lookup[T any] struct {
	Snapshot *Snapshot[T]
	Refresh  <-chan Event[T]
}

// Wait blocks until the refresh completes or ctx is done. When ctx ends first
// the provisional snapshot is reported as stale. Wait consumes the event, so
// call it at most once per Lookup.
func (l Lookup[T]) Wait(ctx context.Context) Event[T] {
	select {
	case ev := <-l.Refresh:
		return ev
	case <-ctx.Done():
	}
	if l.Snapshot != nil {
		return Event[T]{Kind: EventStale, Snapshot: l.Snapshot, Err: fmt.Errorf("%w: %w", ErrRefreshFailed, context.Cause(ctx))}
	}
	return Event[T]{Kind: EventFailed, Err: fmt.Errorf("%w: %w", ErrNoDataAvailable, context.Cause(ctx))}
}

// Cache is a stale-while-revalidate cache over a Store. Every refresh is
// tagged with a per-key generation; a result is committed only if no
// later-issued refresh for the same key has committed before it.
type Cache[T any] struct {
	store  Store
	prefix string
	clock  Clock
	logger Logger

	mu        sync.Mutex
	issued    map[string]uint64
	committed map[string]uint64
}

// NewCache creates a cache whose snapshots are stored under prefix+key.
func NewCache[T any](store Store, prefix string, clock Clock, logger Logger) *Cache[T] {
	return &Cache[T]{
		store:     store,
		prefix:    prefix,
		clock:     clock,
		logger:    logger,
		issued:    make(map[string]uint64),
		committed: make(map[string]uint64),
	}
}

// Peek returns the persisted snapshot for key without refreshing.
func (c *Cache[T]) Peek(ctx context.Context, key string) (*Snapshot[T], bool) {
	snap, ok := loadJSON[Snapshot[T]](ctx, c.store, c.logger, c.prefix+key)
	if !ok {
		return nil, false
	}
	return &snap, true
}

// Get returns the persisted snapshot immediately and starts a refresh in the
// background. It never waits on fetch.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch Fetcher[T]) Lookup[T] {
	snap, _ := c.Peek(ctx, key)

	c.mu.Lock()
	c.issued[key]++
	gen := c.issued[key]
	c.mu.Unlock()

	events := make(chan Event[T], 1)
	go func() {
		defer close(events)
		events <- c.refresh(ctx, key, gen, fetch)
	}()

	return Lookup[T]{Snapshot: snap, Refresh: events}
}

func (c *Cache[T]) refresh(ctx context.Context, key string, gen uint64, fetch Fetcher[T]) Event[T] {
	payload, err := fetch(ctx)
	if err != nil {
		if snap, ok := c.Peek(ctx, key); ok {
			c.logger.Warn("refresh failed, serving stale snapshot",
				"key", key, "captured_at", snap.CapturedAt, "error", err)
			return Event[T]{Kind: EventStale, Key: key, Snapshot: snap, Err: fmt.Errorf("%w: %w", ErrRefreshFailed, err)}
		}
		c.logger.Warn("refresh failed with no snapshot", "key", key, "error", err)
		return Event[T]{Kind: EventFailed, Key: key, Err: fmt.Errorf("%w: %w", ErrNoDataAvailable, err)}
	}

	snap := &Snapshot[T]{Payload: payload, CapturedAt: c.clock.Now(), SourceKey: key}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.committed[key] {
		c.logger.Debug("discarding superseded refresh", "key", key, "generation", gen, "committed", c.committed[key])
		current, _ := c.Peek(ctx, key)
		return Event[T]{Kind: EventSuperseded, Key: key, Snapshot: current}
	}
	c.committed[key] = gen
	saveJSON(ctx, c.store, c.logger, c.prefix+key, snap)
	c.logger.Debug("snapshot updated", "key", key, "generation", gen)
	return Event[T]{Kind: EventUpdated, Key: key, Snapshot: snap}
}

// coarse rounds a coordinate to two decimals (about a kilometre) so small
// jitter in live fixes does not defeat the cache.
func coarse(v float64) string {
	return fmt.Sprintf("%.2f", math.Round(v*100)/100)
}

func locationKey(at Coordinates) string {
	return coarse(at.Latitude) + "," + coarse(at.Longitude)
}

// DailyKey identifies one day's schedule.
func DailyKey(date time.Time, at Coordinates, method Method) string {
	return fmt.Sprintf("%s|%s|%s", date.Format(DateLayout), locationKey(at), method)
}

// MonthKey identifies a gregorian calendar month.
func MonthKey(year int, month time.Month, at Coordinates, method Method) string {
	return fmt.Sprintf("%04d-%02d|%s|%s", year, int(month), locationKey(at), method)
}

// HijriMonthKey identifies a hijri calendar month.
func HijriMonthKey(hijriYear, hijriMonth int, at Coordinates, method Method) string {
	return fmt.Sprintf("h%04d-%02d|%s|%s", hijriYear, hijriMonth, locationKey(at), method)
}

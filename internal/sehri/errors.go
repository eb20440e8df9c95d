package sehri

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoDataAvailable is reported when neither a persisted snapshot nor a
	// refresh produced schedule data.
	ErrNoDataAvailable = errors.New("no schedule data available")

	// ErrRefreshFailed marks a failed refresh against the time source. Callers
	// keep serving the stale snapshot.
	ErrRefreshFailed = errors.New("schedule refresh failed")

	// ErrLocationUnavailable marks a failed live positioning attempt. The
	// resolver always recovers from it through a lower tier.
	ErrLocationUnavailable = errors.New("live location unavailable")

	// ErrMalformedPayload marks a time source answer without usable timings.
	// It fails the refresh like a network error would.
	ErrMalformedPayload = errors.New("malformed time source payload")

	// ErrNotificationDenied is returned when the notifier refuses permission.
	ErrNotificationDenied = errors.New("notification permission denied")
)

// MalformedTimeError reports a time-of-day string that does not match H:MM or HH:MM.
type MalformedTimeError struct {
	Value string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time of day %q", e.Value)
}

// AlreadyPastError is returned when a reminder would fire at or before now.
// Retrying with the same arguments will fail again.
type AlreadyPastError struct {
	FireAt time.Time
	Now    time.Time
}

func (e *AlreadyPastError) Error() string {
	return fmt.Sprintf("reminder fire time %s is not after now (%s)",
		e.FireAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

package sehri

import (
	"context"
	"time"
)

// TimeSource fetches raw schedule data from the remote prayer-time service.
// Implementations return time-of-day strings as received; sanitation happens
// in NewDailySchedule.
type TimeSource interface {
	FetchDailyTimes(ctx context.Context, at Coordinates, date time.Time, method Method) (RawDay, error)
	FetchCalendarMonth(ctx context.Context, at Coordinates, year int, month time.Month, method Method) ([]RawDay, error)
	FetchHijriMonth(ctx context.Context, at Coordinates, hijriYear, hijriMonth int, method Method) ([]RawDay, error)
}

// Geolocator produces a live position fix. A failed attempt returns a
// *PositionError.
type Geolocator interface {
	RequestPosition(ctx context.Context, highAccuracy bool, timeout time.Duration) (Coordinates, error)
}

// PermissionState is the host's answer to a capability request.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionDefault PermissionState = "default"
)

// PermissionProvider reports whether live positioning has been granted.
type PermissionProvider interface {
	LocationPermission(ctx context.Context) PermissionState
}

// Notifier delivers a user-visible notification.
type Notifier interface {
	PermissionState(ctx context.Context) PermissionState
	RequestPermission(ctx context.Context) (PermissionState, error)
	Show(ctx context.Context, title, body string) error
}

// Vibrator is an optional haptic capability. Failures are ignored.
type Vibrator interface {
	Vibrate(pattern []time.Duration) error
}

// CityTable is the static named-city lookup used as the third location tier.
type CityTable interface {
	LookupCity(name string) (Coordinates, bool)
	NearestCity(at Coordinates) (string, bool)
}

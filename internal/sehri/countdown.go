package sehri

import (
	"fmt"
	"time"
)

// CountdownLabel names what the countdown is running toward.
type CountdownLabel string

const (
	TowardDawn   CountdownLabel = "toward_dawn"
	TowardSunset CountdownLabel = "toward_sunset"
)

// CountdownTarget is derived from the schedules and now on every tick. It is
// never persisted.
type CountdownTarget struct {
	Instant time.Time      `json:"instant"`
	Label   CountdownLabel `json:"label"`
}

// Remaining is the time left until the target, clamped at zero.
func (c CountdownTarget) Remaining(now time.Time) time.Duration {
	d := c.Instant.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// DeriveCountdown classifies now against today's dawn and sunset. Each
// comparison is strict, so now equal to an instant counts as past it:
//
//	now < today dawn    -> today dawn, TowardDawn
//	now < today sunset  -> today sunset, TowardSunset
//	otherwise           -> tomorrow dawn, TowardDawn
//
// Instants are built in now's location.
func DeriveCountdown(now time.Time, today, tomorrow DailySchedule) (CountdownTarget, error) {
	loc := now.Location()

	dawn, err := today.DawnAt(loc)
	if err != nil {
		return CountdownTarget{}, fmt.Errorf("today's dawn: %w", err)
	}
	if now.Before(dawn) {
		return CountdownTarget{Instant: dawn, Label: TowardDawn}, nil
	}

	sunset, err := today.SunsetAt(loc)
	if err != nil {
		return CountdownTarget{}, fmt.Errorf("today's sunset: %w", err)
	}
	if now.Before(sunset) {
		return CountdownTarget{Instant: sunset, Label: TowardSunset}, nil
	}

	next, err := tomorrow.DawnAt(loc)
	if err != nil {
		return CountdownTarget{}, fmt.Errorf("tomorrow's dawn: %w", err)
	}
	return CountdownTarget{Instant: next, Label: TowardDawn}, nil
}

// FormatDuration renders d as HH:MM:SS, clamping negatives to zero. Hours are
// not capped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

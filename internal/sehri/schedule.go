package sehri

import (
	"fmt"
	"strings"
	"time"
)

// Timing names as reported by the time source.
const (
	TimingFajr    = "Fajr"
	TimingSunrise = "Sunrise"
	TimingDhuhr   = "Dhuhr"
	TimingAsr     = "Asr"
	TimingMaghrib = "Maghrib"
	TimingIsha    = "Isha"
)

// Substituted when the time source omits or garbles the mandatory timings.
const (
	FallbackDawn   TimeOfDay = "05:00"
	FallbackSunset TimeOfDay = "18:00"
)

// DateLayout is the calendar date format used in schedules and cache keys.
const DateLayout = "2006-01-02"

// Method selects the juristic convention the time source computes with. It is
// opaque to the engine apart from being part of every cache key.
type Method struct {
	ID     int `json:"id"`
	School int `json:"school"`
}

func (m Method) String() string {
	return fmt.Sprintf("m%d-s%d", m.ID, m.School)
}

// RawDay is one day of timings as returned by a TimeSource.
type RawDay struct {
	Date     string            `json:"date"` // YYYY-MM-DD
	Weekday  string            `json:"weekday,omitempty"`
	HijriDay int               `json:"hijri_day,omitempty"`
	Timings  map[string]string `json:"timings"`
}

// DailySchedule holds the sanitized timings of one calendar day. Values are
// replaced wholesale on refresh, never edited in place.
type DailySchedule struct {
	Date      string    `json:"date"`
	Weekday   string    `json:"weekday,omitempty"`
	HijriDay  int       `json:"hijri_day,omitempty"`
	Dawn      TimeOfDay `json:"dawn"`
	Sunrise   TimeOfDay `json:"sunrise,omitempty"`
	Midday    TimeOfDay `json:"midday,omitempty"`
	Afternoon TimeOfDay `json:"afternoon,omitempty"`
	Sunset    TimeOfDay `json:"sunset"`
	Night     TimeOfDay `json:"night,omitempty"`
}

// Validate reports ErrMalformedPayload when neither dawn nor sunset is
// present and parseable. A single bad timing is left to NewDailySchedule's
// fallback.
func (r RawDay) Validate() error {
	usable := func(name string) bool {
		v, ok := r.Timings[name]
		if !ok {
			return false
		}
		_, err := ParseTimeOfDay(v)
		return err == nil
	}
	if !usable(TimingFajr) && !usable(TimingMaghrib) {
		return fmt.Errorf("%w: no usable timings for %q", ErrMalformedPayload, r.Date)
	}
	return nil
}

// ValidateRawDays checks a calendar answer: it must hold at least one day and
// every day must pass Validate.
func ValidateRawDays(days []RawDay) error {
	if len(days) == 0 {
		return fmt.Errorf("%w: empty calendar", ErrMalformedPayload)
	}
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewDailySchedule sanitizes raw. A missing or malformed dawn or sunset is
// logged and replaced with its fallback; malformed optional timings are dropped.
func NewDailySchedule(raw RawDay, logger Logger) DailySchedule {
	if logger == nil {
		logger = NewNopLogger()
	}
	required := func(name string, fallback TimeOfDay) TimeOfDay {
		value, ok := raw.Timings[name]
		if !ok {
			logger.Warn("timing missing, using fallback", "date", raw.Date, "timing", name, "fallback", fallback)
			return fallback
		}
		t, err := ParseTimeOfDay(value)
		if err != nil {
			logger.Warn("timing malformed, using fallback", "date", raw.Date, "timing", name, "error", err, "fallback", fallback)
			return fallback
		}
		return t
	}
	optional := func(name string) TimeOfDay {
		value, ok := raw.Timings[name]
		if !ok || strings.TrimSpace(value) == "" {
			return ""
		}
		t, err := ParseTimeOfDay(value)
		if err != nil {
			logger.Warn("dropping malformed timing", "date", raw.Date, "timing", name, "error", err)
			return ""
		}
		return t
	}

	return DailySchedule{
		Date:      raw.Date,
		Weekday:   raw.Weekday,
		HijriDay:  raw.HijriDay,
		Dawn:      required(TimingFajr, FallbackDawn),
		Sunrise:   optional(TimingSunrise),
		Midday:    optional(TimingDhuhr),
		Afternoon: optional(TimingAsr),
		Sunset:    required(TimingMaghrib, FallbackSunset),
		Night:     optional(TimingIsha),
	}
}

// Day returns the schedule's calendar date at midnight in loc.
func (s DailySchedule) Day(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing schedule date %q: %w", s.Date, err)
	}
	return d, nil
}

// DawnAt returns the dawn instant of the schedule's day in loc.
func (s DailySchedule) DawnAt(loc *time.Location) (time.Time, error) {
	return s.instant(loc, s.Dawn)
}

// SunsetAt returns the sunset instant of the schedule's day in loc.
func (s DailySchedule) SunsetAt(loc *time.Location) (time.Time, error) {
	return s.instant(loc, s.Sunset)
}

// SehriEndAt is dawn moved back by offsetMinutes. The arithmetic is on
// instants, so an offset reaching past midnight lands on the previous day.
func (s DailySchedule) SehriEndAt(loc *time.Location, offsetMinutes int) (time.Time, error) {
	day, err := s.Day(loc)
	if err != nil {
		return time.Time{}, err
	}
	return ShiftedInstant(day, s.Dawn, -offsetMinutes)
}

func (s DailySchedule) instant(loc *time.Location, t TimeOfDay) (time.Time, error) {
	day, err := s.Day(loc)
	if err != nil {
		return time.Time{}, err
	}
	return ToAbsoluteInstant(day, t)
}

// RamadanDay is one row of the fasting calendar.
type RamadanDay struct {
	HijriDay int           `json:"hijri_day"`
	Schedule DailySchedule `json:"schedule"`
}

// RamadanDays converts a hijri month of raw days, shifting each hijri day
// number by adjustment and dropping rows that end up at zero or below.
func RamadanDays(raw []RawDay, adjustment int, logger Logger) []RamadanDay {
	days := make([]RamadanDay, 0, len(raw))
	for _, r := range raw {
		n := r.HijriDay + adjustment
		if n <= 0 {
			continue
		}
		s := NewDailySchedule(r, logger)
		s.HijriDay = n
		days = append(days, RamadanDay{HijriDay: n, Schedule: s})
	}
	return days
}

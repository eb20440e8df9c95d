package sehri

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a 24-hour local wall-clock time in canonical "HH:MM" form.
// It is not an instant: combine it with a calendar date via ToAbsoluteInstant.
type TimeOfDay string

const minutesPerDay = 24 * 60

var (
	clockPattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clock12Pattern = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(AM|PM)?$`)
)

// NewTimeOfDay formats an hour and minute. Values are reduced modulo a day.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	total := ((hour*60+minute)%minutesPerDay + minutesPerDay) % minutesPerDay
	return TimeOfDay(fmt.Sprintf("%02d:%02d", total/60, total%60))
}

// SanitizeTime strips any qualifier the time source appends after the first
// space, e.g. "05:12 (BST)" becomes "05:12".
func SanitizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// ParseTimeOfDay sanitizes raw and validates it as a 24-hour time.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	h, m, err := TimeOfDay(SanitizeTime(raw)).Clock()
	if err != nil {
		return "", err
	}
	return NewTimeOfDay(h, m), nil
}

// ParseClock accepts user input in either "HH:MM" or "H:MM AM/PM" form.
func ParseClock(raw string) (TimeOfDay, error) {
	match := clock12Pattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return "", &MalformedTimeError{Value: raw}
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	if minute > 59 {
		return "", &MalformedTimeError{Value: raw}
	}
	switch strings.ToUpper(match[3]) {
	case "":
		if hour > 23 {
			return "", &MalformedTimeError{Value: raw}
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return "", &MalformedTimeError{Value: raw}
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return "", &MalformedTimeError{Value: raw}
		}
		if hour != 12 {
			hour += 12
		}
	}
	return NewTimeOfDay(hour, minute), nil
}

// Clock returns the hour and minute of t.
func (t TimeOfDay) Clock() (hour, minute int, err error) {
	match := clockPattern.FindStringSubmatch(string(t))
	if match == nil {
		return 0, 0, &MalformedTimeError{Value: string(t)}
	}
	hour, _ = strconv.Atoi(match[1])
	minute, _ = strconv.Atoi(match[2])
	if hour > 23 || minute > 59 {
		return 0, 0, &MalformedTimeError{Value: string(t)}
	}
	return hour, minute, nil
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() (int, error) {
	h, m, err := t.Clock()
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

func (t TimeOfDay) String() string { return string(t) }

// ToAbsoluteInstant places t on the calendar day of date, in date's location.
// Seconds and nanoseconds are zero.
func ToAbsoluteInstant(date time.Time, t TimeOfDay) (time.Time, error) {
	h, m, err := t.Clock()
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location()), nil
}

// ShiftMinutes moves t by delta minutes modulo a day. The result never carries
// a day-rollover marker: shifting "00:10" by -30 yields "23:40". Callers that
// care about the calendar day must compare the instants themselves.
func ShiftMinutes(t TimeOfDay, delta int) (TimeOfDay, error) {
	total, err := t.Minutes()
	if err != nil {
		return "", err
	}
	return NewTimeOfDay(0, total+delta%minutesPerDay), nil
}

// ShiftedInstant returns the instant delta minutes away from t on date. Unlike
// ShiftMinutes it keeps the calendar day: a shift crossing midnight lands on the
// neighbouring day.
func ShiftedInstant(date time.Time, t TimeOfDay, delta int) (time.Time, error) {
	at, err := ToAbsoluteInstant(date, t)
	if err != nil {
		return time.Time{}, err
	}
	return at.Add(time.Duration(delta) * time.Minute), nil
}

// Locale selects display conventions for Format12Hour.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleBangla  Locale = "bn"
)

var banglaDigits = []rune("০১২৩৪৫৬৭৮৯")

// LocalizeDigits substitutes ASCII digits with the locale's glyphs.
func LocalizeDigits(s string, locale Locale) string {
	if locale != LocaleBangla {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(banglaDigits[r-'0'])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Format12Hour renders t as "h:MM AM" in the given locale.
func Format12Hour(t TimeOfDay, locale Locale) (string, error) {
	h, m, err := t.Clock()
	if err != nil {
		return "", err
	}
	am, pm := "AM", "PM"
	if locale == LocaleBangla {
		am, pm = "পূর্বাহ্ণ", "অপরাহ্ণ"
	}
	period := am
	if h >= 12 {
		period = pm
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return LocalizeDigits(fmt.Sprintf("%d:%02d %s", h, m, period), locale), nil
}

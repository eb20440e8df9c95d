// Package calendar enumerates schedule days and exports sehri and iftar
// events as an iCalendar document.
package calendar

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"sehri-go/internal/sehri"
)

// MaxDays bounds a single export or day range.
const MaxDays = 62

const (
	sehriWindow = 10 * time.Minute
	iftarWindow = 30 * time.Minute
)

// Days returns every calendar day from from to to inclusive, at midnight in
// from's location.
func Days(from, to time.Time) ([]time.Time, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, from.Location())
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s is before start %s", end.Format(sehri.DateLayout), start.Format(sehri.DateLayout))
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("building day rule: %w", err)
	}
	days := r.All()
	if len(days) > MaxDays {
		return nil, fmt.Errorf("range of %d days exceeds the maximum of %d", len(days), MaxDays)
	}
	return days, nil
}

// ExportOptions control the generated events.
type ExportOptions struct {
	Location          *time.Location
	ImsakOffsetMinute int
	ReminderLead      int // minutes before iftar for a display alarm; 0 for none
	Locale            sehri.Locale
	Place             string
	Now               time.Time // DTSTAMP
}

// Export writes one sehri-end event and one iftar event per day.
func Export(w io.Writer, days []sehri.DailySchedule, opts ExportOptions) error {
	if len(days) > MaxDays {
		return fmt.Errorf("%d days exceeds the maximum of %d", len(days), MaxDays)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	cal := ics.NewCalendarFor("sehri-go")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(calendarName(opts.Locale))
	cal.SetXWRTimezone(loc.String())

	for _, day := range days {
		sehriEnd, err := day.SehriEndAt(loc, opts.ImsakOffsetMinute)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Date, err)
		}
		dawn, err := day.DawnAt(loc)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Date, err)
		}
		sunset, err := day.SunsetAt(loc)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Date, err)
		}

		sehriUntil := dawn
		if !sehriUntil.After(sehriEnd) {
			sehriUntil = sehriEnd.Add(sehriWindow)
		}
		ev := cal.AddEvent(day.Date + "-sehri@sehri-go")
		ev.SetDtStampTime(opts.Now)
		ev.SetStartAt(sehriEnd)
		ev.SetEndAt(sehriUntil)
		ev.SetSummary(summary(opts.Locale, true))
		ev.SetDescription(describe(opts.Locale, day.Dawn, opts.Place))

		ev = cal.AddEvent(day.Date + "-iftar@sehri-go")
		ev.SetDtStampTime(opts.Now)
		ev.SetStartAt(sunset)
		ev.SetEndAt(sunset.Add(iftarWindow))
		ev.SetSummary(summary(opts.Locale, false))
		ev.SetDescription(describe(opts.Locale, day.Sunset, opts.Place))
		if opts.ReminderLead > 0 {
			alarm := ev.AddAlarm()
			alarm.SetAction(ics.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", opts.ReminderLead))
			alarm.SetDescription(summary(opts.Locale, false))
		}
	}

	return cal.SerializeTo(w)
}

func calendarName(locale sehri.Locale) string {
	if locale == sehri.LocaleBangla {
		return "সেহরি ও ইফতার"
	}
	return "Sehri & Iftar"
}

func summary(locale sehri.Locale, sehriEvent bool) string {
	switch {
	case locale == sehri.LocaleBangla && sehriEvent:
		return "সেহরির শেষ সময়"
	case locale == sehri.LocaleBangla:
		return "ইফতার"
	case sehriEvent:
		return "Sehri ends"
	default:
		return "Iftar"
	}
}

func describe(locale sehri.Locale, t sehri.TimeOfDay, place string) string {
	clock, err := sehri.Format12Hour(t, locale)
	if err != nil {
		clock = t.String()
	}
	if place == "" {
		return clock
	}
	return clock + " · " + place
}

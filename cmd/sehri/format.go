package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"sehri-go/internal/config"
	"sehri-go/internal/sehri"
)

func clock12(t sehri.TimeOfDay, locale sehri.Locale) string {
	s, err := sehri.Format12Hour(t, locale)
	if err != nil {
		return string(t)
	}
	return s
}

func sehriEnd(s sehri.DailySchedule, offset int) sehri.TimeOfDay {
	t, err := sehri.ShiftMinutes(s.Dawn, -offset)
	if err != nil {
		return s.Dawn
	}
	return t
}

func placeLabel(loc sehri.ResolvedLocation) string {
	name := loc.City
	if name == "" {
		name = loc.Coordinates.String()
	}
	label := fmt.Sprintf("%s (%s)", name, loc.Source)
	if loc.LiveStatus != sehri.LiveOK && loc.LiveStatus != sehri.LiveDisabled {
		label += fmt.Sprintf(", live location %s", loc.LiveStatus)
	}
	return label
}

func countdownLine(target sehri.CountdownTarget, now time.Time, locale sehri.Locale) string {
	remaining := sehri.LocalizeDigits(sehri.FormatDuration(target.Remaining(now)), locale)
	return fmt.Sprintf("%s: %s", sehri.CountdownCaption(target.Label, locale), remaining)
}

func printToday(w io.Writer, s sehri.State, settings sehri.Settings, now time.Time) {
	day := s.Today
	fmt.Fprintf(w, "%s  %s %s\n\n", placeLabel(s.Location), day.Weekday, day.Date)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label string, t sehri.TimeOfDay) {
		if t != "" {
			fmt.Fprintf(tw, "%s\t%s\n", label, clock12(t, settings.Locale))
		}
	}
	row("Sehri ends", sehriEnd(*day, settings.ImsakOffsetMinute))
	row("Fajr", day.Dawn)
	row("Sunrise", day.Sunrise)
	row("Dhuhr", day.Midday)
	row("Asr", day.Afternoon)
	row("Iftar", day.Sunset)
	row("Isha", day.Night)
	tw.Flush()

	if s.Countdown != nil {
		fmt.Fprintf(w, "\n%s\n", countdownLine(*s.Countdown, now, settings.Locale))
	}
	fmt.Fprintf(w, "\nStatus: %s", s.Status)
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(w, " (fetched %s)", s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
}

func printDays(w io.Writer, days []sehri.DailySchedule, settings sehri.Settings) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tDay\tSehri ends\tIftar")
	for _, d := range days {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Date, d.Weekday,
			clock12(sehriEnd(d, settings.ImsakOffsetMinute), settings.Locale),
			clock12(d.Sunset, settings.Locale))
	}
	tw.Flush()
}

func printRamadan(w io.Writer, days []sehri.RamadanDay, settings sehri.Settings) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Roza\tDate\tSehri ends\tIftar")
	for _, d := range days {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.HijriDay, d.Schedule.Date,
			clock12(sehriEnd(d.Schedule, settings.ImsakOffsetMinute), settings.Locale),
			clock12(d.Schedule.Sunset, settings.Locale))
	}
	tw.Flush()
}

func printConfig(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	location := "auto"
	switch {
	case cfg.Location.HasCoordinates():
		location = fmt.Sprintf("%.4f,%.4f", cfg.Location.Latitude, cfg.Location.Longitude)
	case cfg.Location.City != "":
		location = cfg.Location.City
	}
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = "host"
	}
	store := cfg.Store.Type
	if cfg.Store.Encrypted {
		store += " (encrypted)"
	}

	fmt.Fprintf(tw, "Base Dir:\t%s\n", cfg.BaseDir)
	fmt.Fprintf(tw, "Log Dir:\t%s\n", cfg.LogDir)
	fmt.Fprintf(tw, "Timezone:\t%s\n", timezone)
	fmt.Fprintf(tw, "Locale:\t%s\n", cfg.Locale)
	fmt.Fprintf(tw, "Location:\t%s (live: %v)\n", location, cfg.Location.UseLive)
	fmt.Fprintf(tw, "Method:\t%d, school %d\n", cfg.Schedule.Method, cfg.Schedule.School)
	fmt.Fprintf(tw, "Imsak offset:\t%d min\n", cfg.Schedule.ImsakOffsetMin)
	fmt.Fprintf(tw, "Reminder lead:\t%d min\n", cfg.Schedule.ReminderLeadMin)
	fmt.Fprintf(tw, "Store:\t%s\n", store)
	fmt.Fprintf(tw, "Notifier:\t%s\n", cfg.Notifier.Type)
	fmt.Fprintf(tw, "Listen:\t%s\n", cfg.Server.Listen)
	tw.Flush()
}

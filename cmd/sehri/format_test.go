package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"sehri-go/internal/sehri"
)

var testSettings = sehri.Settings{ImsakOffsetMinute: 19, Locale: sehri.LocaleEnglish}

func TestPlaceLabel(t *testing.T) {
	tests := []struct {
		name string
		loc  sehri.ResolvedLocation
		want string
	}{
		{
			name: "city",
			loc:  sehri.ResolvedLocation{City: "Sylhet", Source: sehri.SourceSavedCity},
			want: "Sylhet (saved_city)",
		},
		{
			name: "coordinates without city",
			loc:  sehri.ResolvedLocation{Coordinates: sehri.Coordinates{Latitude: 1.5, Longitude: 2.25}, Source: sehri.SourceSavedCoordinates},
			want: "1.5000,2.2500 (saved_coordinates)",
		},
		{
			name: "live failure disclosed",
			loc:  sehri.ResolvedLocation{City: "Dhaka", Source: sehri.SourceDefault, LiveStatus: sehri.LiveTimeout},
			want: "Dhaka (default), live location timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := placeLabel(tt.loc); got != tt.want {
				t.Errorf("placeLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountdownLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	target := sehri.CountdownTarget{Instant: now.Add(7*time.Hour + 30*time.Minute + 5*time.Second), Label: sehri.TowardSunset}

	if got, want := countdownLine(target, now, sehri.LocaleEnglish), "Time until Iftar: 07:30:05"; got != want {
		t.Errorf("countdownLine() = %q, want %q", got, want)
	}
	if got, want := countdownLine(target, now, sehri.LocaleBangla), "ইফতার বাকি: ০৭:৩০:০৫"; got != want {
		t.Errorf("countdownLine(bn) = %q, want %q", got, want)
	}
}

func TestPrintToday(t *testing.T) {
	day := sehri.DailySchedule{Date: "2026-03-01", Weekday: "Sunday", Dawn: "05:00", Sunrise: "06:14", Sunset: "18:00"}
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s := sehri.State{
		Location:  sehri.ResolvedLocation{City: "Dhaka", Source: sehri.SourceDefault},
		Today:     &day,
		Status:    sehri.StatusUpdated,
		Countdown: &sehri.CountdownTarget{Instant: now.Add(time.Hour), Label: sehri.TowardSunset},
	}

	var buf bytes.Buffer
	printToday(&buf, s, testSettings, now)
	out := buf.String()

	for _, want := range []string{
		"Dhaka (default)  Sunday 2026-03-01",
		"Sehri ends  4:41 AM",
		"Sunrise     6:14 AM",
		"Iftar       6:00 PM",
		"Time until Iftar: 01:00:00",
		"Status: updated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Isha") {
		t.Errorf("output lists an empty timing:\n%s", out)
	}
}

func TestPrintRamadan(t *testing.T) {
	days := []sehri.RamadanDay{
		{HijriDay: 1, Schedule: sehri.DailySchedule{Date: "2026-02-19", Dawn: "05:08", Sunset: "17:56"}},
	}

	var buf bytes.Buffer
	printRamadan(&buf, days, testSettings)
	if !strings.Contains(buf.String(), "1     2026-02-19  4:49 AM     5:56 PM") {
		t.Errorf("printRamadan() =\n%s", buf.String())
	}
}

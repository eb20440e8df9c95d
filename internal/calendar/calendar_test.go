package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"sehri-go/internal/sehri"
	"sehri-go/internal/testutil"
)

func TestDays(t *testing.T) {
	loc := testutil.Dhaka()
	tests := []struct {
		name      string
		from, to  time.Time
		wantFirst string
		wantLast  string
		wantLen   int
		wantErr   bool
	}{
		{
			name:      "single day ignores clock",
			from:      time.Date(2026, 3, 1, 22, 15, 0, 0, loc),
			to:        time.Date(2026, 3, 1, 1, 0, 0, 0, loc),
			wantFirst: "2026-03-01", wantLast: "2026-03-01", wantLen: 1,
		},
		{
			name:      "across month end",
			from:      time.Date(2026, 2, 26, 0, 0, 0, 0, loc),
			to:        time.Date(2026, 3, 3, 0, 0, 0, 0, loc),
			wantFirst: "2026-02-26", wantLast: "2026-03-03", wantLen: 6,
		},
		{
			name:    "reversed",
			from:    time.Date(2026, 3, 3, 0, 0, 0, 0, loc),
			to:      time.Date(2026, 3, 1, 0, 0, 0, 0, loc),
			wantErr: true,
		},
		{
			name:    "too long",
			from:    time.Date(2026, 1, 1, 0, 0, 0, 0, loc),
			to:      time.Date(2026, 6, 1, 0, 0, 0, 0, loc),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := Days(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Days() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(days) != tt.wantLen {
				t.Fatalf("len(Days()) = %d, want %d", len(days), tt.wantLen)
			}
			if got := days[0].Format(sehri.DateLayout); got != tt.wantFirst {
				t.Errorf("first = %s, want %s", got, tt.wantFirst)
			}
			if got := days[len(days)-1].Format(sehri.DateLayout); got != tt.wantLast {
				t.Errorf("last = %s, want %s", got, tt.wantLast)
			}
			if days[0].Hour() != 0 || days[0].Location() != loc {
				t.Errorf("day is not midnight in the request zone: %v", days[0])
			}
		})
	}
}

func schedule(date string, dawn, sunset sehri.TimeOfDay) sehri.DailySchedule {
	return sehri.DailySchedule{Date: date, Dawn: dawn, Sunset: sunset}
}

func TestExport(t *testing.T) {
	loc := testutil.Dhaka()
	days := []sehri.DailySchedule{
		schedule("2026-03-01", "04:58", "18:02"),
		schedule("2026-03-02", "04:57", "18:03"),
	}

	var buf bytes.Buffer
	err := Export(&buf, days, ExportOptions{
		Location:          loc,
		ImsakOffsetMinute: 10,
		ReminderLead:      15,
		Locale:            sehri.LocaleEnglish,
		Place:             "Dhaka",
		Now:               time.Date(2026, 3, 1, 10, 30, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v\n%s", err, buf.String())
	}
	events := cal.Events()
	if len(events) != 4 {
		t.Fatalf("len(Events()) = %d, want 4", len(events))
	}

	sehriEvent := events[0]
	if sehriEvent.Id() != "2026-03-01-sehri@sehri-go" {
		t.Errorf("UID = %q", sehriEvent.Id())
	}
	start, err := sehriEvent.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt() error = %v", err)
	}
	// 04:58 BDT minus 10 minutes is 22:48 UTC the previous day.
	if want := time.Date(2026, 2, 28, 22, 48, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("sehri start = %v, want %v", start, want)
	}
	if got := sehriEvent.GetProperty(ics.ComponentPropertySummary).Value; got != "Sehri ends" {
		t.Errorf("sehri summary = %q", got)
	}

	iftar := events[1]
	start, _ = iftar.GetStartAt()
	if want := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("iftar start = %v, want %v", start, want)
	}
	if len(iftar.Alarms()) != 1 {
		t.Errorf("iftar has %d alarms, want 1", len(iftar.Alarms()))
	}

	out := buf.String()
	for _, want := range []string{"DTSTAMP:20260301T043000Z", "TRIGGER:-PT15M", "X-WR-CALNAME:Sehri & Iftar"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestExport_Bangla(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, []sehri.DailySchedule{schedule("2026-03-01", "04:58", "18:02")}, ExportOptions{
		Location: testutil.Dhaka(),
		Locale:   sehri.LocaleBangla,
		Now:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), "ইফতার") {
		t.Error("Bangla export lacks the iftar summary")
	}
	if strings.Contains(buf.String(), "TRIGGER") {
		t.Error("export without lead should carry no alarm")
	}
}

func TestExport_BadDate(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, []sehri.DailySchedule{schedule("01-03-2026", "04:58", "18:02")}, ExportOptions{})
	if err == nil {
		t.Fatal("Export() with malformed date expected error")
	}
}

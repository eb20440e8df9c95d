package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sehri-go/internal/sehri"
)

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func syncedApp(t *testing.T) *appFixture {
	t.Helper()
	f := newTestApp(t)
	if _, err := f.app.Today(context.Background()); err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	return f
}

func TestServer_Health(t *testing.T) {
	f := newTestApp(t)

	rec := doRequest(t, f.app.Handler(), http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestServer_Today(t *testing.T) {
	f := syncedApp(t)

	rec := doRequest(t, f.app.Handler(), http.MethodGet, "/api/today")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/today status = %d, want 200", rec.Code)
	}
	var s sehri.State
	decodeBody(t, rec, &s)
	if s.Today == nil || s.Today.Date != "2026-03-01" {
		t.Errorf("today = %+v, want 2026-03-01", s.Today)
	}
	if s.Tomorrow == nil || s.Tomorrow.Dawn != "04:59" {
		t.Errorf("tomorrow = %+v, want dawn 04:59", s.Tomorrow)
	}
}

func TestServer_Countdown(t *testing.T) {
	t.Run("before any sync", func(t *testing.T) {
		f := newTestApp(t)
		rec := doRequest(t, f.app.Handler(), http.MethodGet, "/api/countdown")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET /api/countdown status = %d, want 503", rec.Code)
		}
	})

	t.Run("after sync", func(t *testing.T) {
		f := syncedApp(t)
		rec := doRequest(t, f.app.Handler(), http.MethodGet, "/api/countdown")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /api/countdown status = %d, want 200", rec.Code)
		}
		var got countdownResponse
		decodeBody(t, rec, &got)
		if got.Label != sehri.TowardSunset || got.Caption != "Time until Iftar" {
			t.Errorf("label, caption = %q, %q", got.Label, got.Caption)
		}
		if got.Remaining != "07:30:00" || got.RemainingSec != 27000 {
			t.Errorf("remaining = %q (%d s), want 07:30:00", got.Remaining, got.RemainingSec)
		}
	})
}

func TestServer_ReminderLifecycle(t *testing.T) {
	f := syncedApp(t)
	h := f.app.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/reminder")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/reminder status = %d, want 201 (body %q)", rec.Code, rec.Body.String())
	}
	var armed sehri.ReminderState
	decodeBody(t, rec, &armed)
	if !armed.Active || armed.LeadMinutes != 15 {
		t.Errorf("armed = %+v, want active with 15 minute lead", armed)
	}

	var status sehri.ReminderStatus
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/reminder"), &status)
	if !status.Active || !status.ScheduledFor.Equal(dhaka(1, 17, 45)) {
		t.Errorf("status = %+v, want active at 17:45", status)
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/reminder")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /api/reminder status = %d, want 204", rec.Code)
	}

	status = sehri.ReminderStatus{}
	decodeBody(t, doRequest(t, h, http.MethodGet, "/api/reminder"), &status)
	if status.Active {
		t.Error("status.Active = true after DELETE")
	}
}

func TestServer_ArmReminderErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *appFixture)
		sync  bool
		want  int
	}{
		{
			name: "no schedule yet",
			want: http.StatusServiceUnavailable,
		},
		{
			name:  "notifications denied",
			setup: func(f *appFixture) { f.notifier.State = sehri.PermissionDenied },
			sync:  true,
			want:  http.StatusForbidden,
		},
		{
			name:  "too late today",
			setup: func(f *appFixture) { f.clock.Set(dhaka(1, 17, 50)) },
			sync:  true,
			want:  http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f *appFixture
			if tt.sync {
				f = syncedApp(t)
			} else {
				f = newTestApp(t)
			}
			if tt.setup != nil {
				tt.setup(f)
			}

			rec := doRequest(t, f.app.Handler(), http.MethodPost, "/api/reminder")
			if rec.Code != tt.want {
				t.Errorf("POST /api/reminder status = %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestServer_Calendar(t *testing.T) {
	f := newTestApp(t)
	h := f.app.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/calendar?year=2026&month=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/calendar status = %d, want 200", rec.Code)
	}
	var days []sehri.DailySchedule
	decodeBody(t, rec, &days)
	if len(days) != 2 {
		t.Errorf("got %d days, want 2", len(days))
	}

	for _, target := range []string{"/api/calendar?month=13", "/api/calendar?year=abc"} {
		if rec := doRequest(t, h, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestServer_Ramadan(t *testing.T) {
	f := newTestApp(t)

	rec := doRequest(t, f.app.Handler(), http.MethodGet, "/api/ramadan?year=1447")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/ramadan status = %d, want 200", rec.Code)
	}
	var days []sehri.RamadanDay
	decodeBody(t, rec, &days)
	if len(days) != 3 {
		t.Errorf("got %d days, want 3", len(days))
	}
}

func TestServer_ICS(t *testing.T) {
	f := newTestApp(t)
	h := f.app.Handler()

	rec := doRequest(t, h, http.MethodGet, "/calendar.ics?from=2026-03-01&to=2026-03-02")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /calendar.ics status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q, want text/calendar", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "2026-03-02-sehri@sehri-go") {
		t.Errorf("body missing second day's sehri event: %q", body)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "bad date", target: "/calendar.ics?from=01-03-2026", want: http.StatusBadRequest},
		{name: "reversed range", target: "/calendar.ics?from=2026-03-02&to=2026-03-01", want: http.StatusBadRequest},
		{name: "range too long", target: "/calendar.ics?from=2026-01-01&to=2026-12-31", want: http.StatusBadRequest},
		{name: "month unavailable", target: "/calendar.ics?from=2026-04-01&to=2026-04-02", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := doRequest(t, h, http.MethodGet, tt.target); rec.Code != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.target, rec.Code, tt.want)
			}
		})
	}
}

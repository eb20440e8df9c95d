package sehri_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"sehri-go/internal/sehri"
	"sehri-go/internal/testutil"
)

type orchestratorFixture struct {
	clock     clock.FakeClock
	timers    *testutil.ManualTimers
	store     sehri.Store
	source    *testutil.FakeTimeSource
	notifier  *testutil.FakeNotifier
	reminders *sehri.ReminderScheduler
	orch      *sehri.Orchestrator
}

var testSettings = sehri.Settings{
	Method:            sehri.Method{ID: 2, School: 1},
	LeadMinutes:       15,
	ImsakOffsetMinute: 19,
	Locale:            sehri.LocaleEnglish,
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		clock:    testutil.FixedClock(),
		store:    testutil.NewTestStore(),
		source:   testutil.NewFakeTimeSource(),
		notifier: testutil.NewFakeNotifier(),
	}
	f.source.SetDay("2026-03-01", "05:00 (+06)", "18:00 (+06)")
	f.source.SetDay("2026-03-02", "04:59 (+06)", "18:01 (+06)")
	f.timers = testutil.NewManualTimers(f.clock)
	f.orch = f.newOrchestrator()
	return f
}

func (f *orchestratorFixture) newOrchestrator() *sehri.Orchestrator {
	logger := sehri.NewNopLogger()
	resolver := sehri.NewLocationResolver(nil, nil, cities, f.store, logger)
	f.reminders = sehri.NewReminderScheduler(f.store, f.notifier, nil, logger, f.clock, f.timers.AfterFunc, testutil.NewStubIDGenerator())
	return sehri.NewOrchestrator(resolver, f.source, f.store, f.reminders, logger, f.clock, testSettings)
}

func waitState(t *testing.T, done <-chan sehri.State) sehri.State {
	t.Helper()
	select {
	case s, ok := <-done:
		if !ok {
			t.Fatal("cycle finished without a final state")
		}
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync cycle")
	}
	return sehri.State{}
}

func at(h, m int) time.Time {
	return time.Date(2026, 3, 1, h, m, 0, 0, testutil.Dhaka())
}

func TestOrchestrator_MountWithoutCache(t *testing.T) {
	f := newOrchestratorFixture(t)

	provisional, done := f.orch.Mount(context.Background())
	if provisional.Status != sehri.StatusLoading || provisional.Today != nil {
		t.Fatalf("provisional = %+v, want loading without data", provisional)
	}
	if provisional.Location.Source != sehri.SourceDefault {
		t.Errorf("Location.Source = %s, want default", provisional.Location.Source)
	}

	final := waitState(t, done)
	if final.Status != sehri.StatusUpdated {
		t.Fatalf("Status = %s, want %s", final.Status, sehri.StatusUpdated)
	}
	if final.Today == nil || final.Today.Dawn != "05:00" || final.Today.Sunset != "18:00" {
		t.Fatalf("Today = %+v", final.Today)
	}
	if final.Tomorrow == nil || final.Tomorrow.Dawn != "04:59" {
		t.Fatalf("Tomorrow = %+v", final.Tomorrow)
	}
	if final.Countdown == nil || final.Countdown.Label != sehri.TowardSunset || !final.Countdown.Instant.Equal(at(18, 0)) {
		t.Errorf("Countdown = %+v, want toward sunset at 18:00", final.Countdown)
	}
	if !final.SehriEnd.Equal(at(4, 41)) {
		t.Errorf("SehriEnd = %v, want 04:41", final.SehriEnd)
	}
	if !final.Iftar.Equal(at(18, 0)) {
		t.Errorf("Iftar = %v, want 18:00", final.Iftar)
	}
}

func TestOrchestrator_ServesCacheThenReportsStale(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, done := f.orch.Mount(context.Background())
	waitState(t, done)

	// Restart with the network failing.
	f.source.SetErr(errors.New("503 service unavailable"))
	f.orch = f.newOrchestrator()

	provisional, done := f.orch.Mount(context.Background())
	if provisional.Status != sehri.StatusCached || provisional.Today == nil {
		t.Fatalf("provisional = %+v, want cached data", provisional)
	}
	final := waitState(t, done)
	if final.Status != sehri.StatusStale {
		t.Errorf("Status = %s, want %s", final.Status, sehri.StatusStale)
	}
	if final.Today == nil || final.Today.Sunset != "18:00" {
		t.Errorf("Today = %+v, want stale schedule", final.Today)
	}
}

func TestOrchestrator_MalformedRefreshKeepsSnapshot(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.source.SetDay("2026-03-01", "04:41 (+06)", "17:55 (+06)")
	_, done := f.orch.Mount(context.Background())
	if s := waitState(t, done); s.Today == nil || s.Today.Dawn != "04:41" {
		t.Fatalf("Today = %+v, want dawn 04:41", s.Today)
	}

	// The source now answers 200 with no timings at all.
	f.source.Days["2026-03-01"] = sehri.RawDay{Date: "2026-03-01", Timings: map[string]string{}}
	f.source.Days["2026-03-02"] = sehri.RawDay{Date: "2026-03-02", Timings: map[string]string{sehri.TimingFajr: "later"}}
	f.orch = f.newOrchestrator()

	_, done = f.orch.Mount(context.Background())
	final := waitState(t, done)
	if final.Status != sehri.StatusStale {
		t.Errorf("Status = %s, want %s", final.Status, sehri.StatusStale)
	}
	if final.Today == nil || final.Today.Dawn != "04:41" || final.Today.Sunset != "17:55" {
		t.Errorf("Today = %+v, want the cached 04:41/17:55 schedule", final.Today)
	}
	if final.Tomorrow == nil || final.Tomorrow.Dawn != "04:59" {
		t.Errorf("Tomorrow = %+v, want the cached 04:59 schedule", final.Tomorrow)
	}
}

func TestOrchestrator_NoDataAnywhere(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.source.SetErr(errors.New("no route to host"))

	_, done := f.orch.Mount(context.Background())
	final := waitState(t, done)
	if final.Status != sehri.StatusUnavailable {
		t.Errorf("Status = %s, want %s", final.Status, sehri.StatusUnavailable)
	}
	if final.Countdown != nil {
		t.Errorf("Countdown = %+v, want nil", final.Countdown)
	}
	if _, err := f.orch.ArmIftarReminder(context.Background()); !errors.Is(err, sehri.ErrNoDataAvailable) {
		t.Errorf("ArmIftarReminder() error = %v, want ErrNoDataAvailable", err)
	}
}

func TestOrchestrator_Offline(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	_, done := f.orch.Mount(ctx)
	waitState(t, done)
	calls := f.source.Calls()

	state, _, started := f.orch.SetOnline(ctx, false)
	if started {
		t.Error("going offline started a cycle")
	}
	if state.Status != sehri.StatusOffline {
		t.Errorf("Status = %s, want offline", state.Status)
	}

	offline, done := f.orch.Refresh(ctx)
	waitState(t, done)
	if offline.Status != sehri.StatusOffline || offline.Today == nil {
		t.Errorf("offline refresh = %+v, want cached data", offline)
	}
	if f.source.Calls() != calls {
		t.Errorf("time source called %d times while offline", f.source.Calls()-calls)
	}

	_, done, started = f.orch.SetOnline(ctx, true)
	if !started {
		t.Fatal("coming back online did not start a cycle")
	}
	back := waitState(t, done)
	if back.Status != sehri.StatusUpdated || back.Trigger != sehri.TriggerConnectivity {
		t.Errorf("online state = %+v", back)
	}
	if f.source.Calls() != calls+2 {
		t.Errorf("time source calls = %d, want %d", f.source.Calls(), calls+2)
	}

	if _, _, started := f.orch.SetOnline(ctx, true); started {
		t.Error("staying online started a cycle")
	}
}

func TestOrchestrator_MethodChangeInvalidatesCache(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	_, done := f.orch.Mount(ctx)
	waitState(t, done)

	f.source.SetErr(errors.New("timeout"))
	provisional, done := f.orch.SetMethod(ctx, sehri.Method{ID: 2, School: 0})
	if provisional.Today != nil {
		t.Errorf("provisional Today = %+v, want nil for new method", provisional.Today)
	}
	final := waitState(t, done)
	if final.Status != sehri.StatusUnavailable {
		t.Errorf("Status = %s, want %s", final.Status, sehri.StatusUnavailable)
	}
	if got := f.orch.Settings().Method.School; got != 0 {
		t.Errorf("Settings().Method.School = %d, want 0", got)
	}
}

func TestOrchestrator_LocationPrefsChange(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	_, done := f.orch.SetLocationPrefs(ctx, sehri.LocationPrefs{City: "Sylhet"})
	final := waitState(t, done)
	if final.Location.Source != sehri.SourceSavedCity || final.Location.Coordinates != sylhet {
		t.Errorf("Location = %+v, want Sylhet", final.Location)
	}
	if final.Trigger != sehri.TriggerLocationPrefs {
		t.Errorf("Trigger = %s", final.Trigger)
	}
}

func TestOrchestrator_Subscribe(t *testing.T) {
	f := newOrchestratorFixture(t)
	var mu sync.Mutex
	var seen []sehri.ScheduleStatus
	f.orch.Subscribe(func(s sehri.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Status)
	})

	_, done := f.orch.Mount(context.Background())
	waitState(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Fatalf("published %d states, want at least 2", len(seen))
	}
	if seen[0] != sehri.StatusLoading {
		t.Errorf("first status = %s, want loading", seen[0])
	}
	if seen[len(seen)-1] != sehri.StatusUpdated {
		t.Errorf("last status = %s, want updated", seen[len(seen)-1])
	}
}

func TestOrchestrator_SnapshotRederivesCountdown(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, done := f.orch.Mount(context.Background())
	waitState(t, done)

	f.clock.Set(at(19, 0))
	s := f.orch.Snapshot()
	want := time.Date(2026, 3, 2, 4, 59, 0, 0, testutil.Dhaka())
	if s.Countdown == nil || s.Countdown.Label != sehri.TowardDawn || !s.Countdown.Instant.Equal(want) {
		t.Errorf("Countdown = %+v, want toward tomorrow's dawn", s.Countdown)
	}
}

func TestOrchestrator_ArmIftarReminder(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	_, done := f.orch.Mount(ctx)
	waitState(t, done)

	state, err := f.orch.ArmIftarReminder(ctx)
	if err != nil {
		t.Fatalf("ArmIftarReminder() error = %v", err)
	}
	if !state.ScheduledFor.Equal(at(17, 45)) {
		t.Errorf("ScheduledFor = %v, want 17:45", state.ScheduledFor)
	}
	if want := "Iftar in 15 minutes (6:00 PM)"; state.Message.Body != want {
		t.Errorf("Body = %q, want %q", state.Message.Body, want)
	}

	f.timers.Advance(at(17, 45).Sub(f.clock.Now()))
	if f.notifier.ShownCount() != 1 {
		t.Errorf("notifications shown = %d, want 1", f.notifier.ShownCount())
	}

	if _, err := f.orch.ArmIftarReminder(ctx); err == nil {
		t.Error("ArmIftarReminder() after the reminder time succeeded")
	}
}

func TestOrchestrator_Calendar(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.source.Months["2026-03"] = []sehri.RawDay{
		{Date: "2026-03-01", Timings: map[string]string{sehri.TimingFajr: "05:00 (+06)", sehri.TimingMaghrib: "18:00 (+06)"}},
		{Date: "2026-03-02", Timings: map[string]string{sehri.TimingFajr: "04:59 (+06)"}},
	}

	ev := f.orch.Calendar(context.Background(), 2026, time.March).Wait(context.Background())
	if ev.Kind != sehri.EventUpdated {
		t.Fatalf("Kind = %s, err = %v", ev.Kind, ev.Err)
	}
	days := ev.Snapshot.Payload
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[1].Sunset != sehri.FallbackSunset {
		t.Errorf("day 2 sunset = %s, want fallback", days[1].Sunset)
	}

	again := f.orch.Calendar(context.Background(), 2026, time.March)
	if again.Snapshot == nil || len(again.Snapshot.Payload) != 2 {
		t.Errorf("second lookup snapshot = %+v", again.Snapshot)
	}
	again.Wait(context.Background())
}

func TestOrchestrator_CalendarMalformedRefresh(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.source.Months["2026-03"] = []sehri.RawDay{
		{Date: "2026-03-01", Timings: map[string]string{sehri.TimingFajr: "05:00", sehri.TimingMaghrib: "18:00"}},
	}
	if ev := f.orch.Calendar(context.Background(), 2026, time.March).Wait(context.Background()); ev.Kind != sehri.EventUpdated {
		t.Fatalf("Kind = %s, err = %v", ev.Kind, ev.Err)
	}

	tests := []struct {
		name string
		days []sehri.RawDay
	}{
		{name: "empty month", days: []sehri.RawDay{}},
		{name: "day without timings", days: []sehri.RawDay{{Date: "2026-03-01"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.source.Months["2026-03"] = tt.days
			ev := f.orch.Calendar(context.Background(), 2026, time.March).Wait(context.Background())
			if ev.Kind != sehri.EventStale {
				t.Fatalf("Kind = %s, want %s", ev.Kind, sehri.EventStale)
			}
			if !errors.Is(ev.Err, sehri.ErrMalformedPayload) {
				t.Errorf("Err = %v, want ErrMalformedPayload", ev.Err)
			}
			if len(ev.Snapshot.Payload) != 1 || ev.Snapshot.Payload[0].Dawn != "05:00" {
				t.Errorf("Payload = %+v, want the cached day", ev.Snapshot.Payload)
			}
		})
	}
}

func TestOrchestrator_Ramadan(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.source.Months["h1447-09"] = []sehri.RawDay{
		{Date: "2026-02-18", HijriDay: 1, Timings: map[string]string{sehri.TimingFajr: "05:10", sehri.TimingMaghrib: "17:58"}},
		{Date: "2026-02-19", HijriDay: 2, Timings: map[string]string{sehri.TimingFajr: "05:09", sehri.TimingMaghrib: "17:59"}},
	}

	ev := f.orch.Ramadan(context.Background(), 1447, 9, -1).Wait(context.Background())
	if ev.Kind != sehri.EventUpdated {
		t.Fatalf("Kind = %s, err = %v", ev.Kind, ev.Err)
	}
	if len(ev.Snapshot.Payload) != 1 || ev.Snapshot.Payload[0].HijriDay != 1 {
		t.Errorf("days = %+v, want one day numbered 1", ev.Snapshot.Payload)
	}
}

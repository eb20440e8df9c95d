package sehri

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Trigger names what started a sync cycle.
type Trigger string

const (
	TriggerMount         Trigger = "mount"
	TriggerConnectivity  Trigger = "connectivity"
	TriggerLocationPrefs Trigger = "location_prefs"
	TriggerMethod        Trigger = "method"
	TriggerScheduled     Trigger = "scheduled"
)

// ScheduleStatus is the freshness indicator shown alongside the schedule.
type ScheduleStatus string

const (
	StatusLoading     ScheduleStatus = "loading"
	StatusCached      ScheduleStatus = "cached"
	StatusUpdated     ScheduleStatus = "updated"
	StatusStale       ScheduleStatus = "update_failed"
	StatusOffline     ScheduleStatus = "offline"
	StatusUnavailable ScheduleStatus = "unavailable"
)

// Settings are the user preferences the orchestrator reacts to.
type Settings struct {
	Location          LocationPrefs
	Method            Method
	LeadMinutes       int
	ImsakOffsetMinute int
	Locale            Locale
}

// State is what the orchestrator publishes after every schedule change.
type State struct {
	Location  ResolvedLocation `json:"location"`
	Today     *DailySchedule   `json:"today,omitempty"`
	Tomorrow  *DailySchedule   `json:"tomorrow,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitzero"`
	SehriEnd  time.Time        `json:"sehri_end,omitzero"`
	Iftar     time.Time        `json:"iftar,omitzero"`
	Countdown *CountdownTarget `json:"countdown,omitempty"`
	Status    ScheduleStatus   `json:"status"`
	Online    bool             `json:"online"`
	Trigger   Trigger          `json:"trigger"`
}

// Orchestrator drives one direction per cycle: resolve location, load today's
// and tomorrow's schedules through the cache, derive the countdown. It never
// arms reminders on its own.
type Orchestrator struct {
	resolver  *LocationResolver
	source    TimeSource
	daily     *Cache[DailySchedule]
	monthly   *Cache[[]DailySchedule]
	ramadan   *Cache[[]RamadanDay]
	reminders *ReminderScheduler
	logger    Logger
	clock     Clock

	mu        sync.Mutex
	settings  Settings
	online    bool
	cycle     uint64
	state     State
	listeners []func(State)
}

// NewOrchestrator wires the engine components. The orchestrator starts online.
func NewOrchestrator(resolver *LocationResolver, source TimeSource, store Store, reminders *ReminderScheduler, logger Logger, clock Clock, settings Settings) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		source:    source,
		daily:     NewCache[DailySchedule](store, keySchedulePrefix, clock, logger),
		monthly:   NewCache[[]DailySchedule](store, keyCalendarPrefix, clock, logger),
		ramadan:   NewCache[[]RamadanDay](store, keyCalendarPrefix, clock, logger),
		reminders: reminders,
		logger:    logger,
		clock:     clock,
		settings:  settings,
		online:    true,
		state:     State{Status: StatusLoading, Online: true},
	}
}

// Subscribe registers f to receive every published State.
func (o *Orchestrator) Subscribe(f func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, f)
}

// Mount runs the initial cycle. The returned State is built from persisted
// data only; done receives the final State of the cycle and is then closed.
func (o *Orchestrator) Mount(ctx context.Context) (State, <-chan State) {
	return o.run(ctx, TriggerMount)
}

// Refresh runs a cycle outside of any preference change.
func (o *Orchestrator) Refresh(ctx context.Context) (State, <-chan State) {
	return o.run(ctx, TriggerScheduled)
}

// SetOnline records connectivity. Only an offline to online transition starts
// a cycle; ok reports whether one was started.
func (o *Orchestrator) SetOnline(ctx context.Context, online bool) (state State, done <-chan State, ok bool) {
	o.mu.Lock()
	was := o.online
	o.online = online
	o.state.Online = online
	if !online {
		o.state.Status = StatusOffline
	}
	o.mu.Unlock()

	if was || !online {
		return o.Snapshot(), nil, false
	}
	o.logger.Info("connectivity restored, syncing")
	state, done = o.run(ctx, TriggerConnectivity)
	return state, done, true
}

// SetLocationPrefs replaces the location preferences and syncs.
func (o *Orchestrator) SetLocationPrefs(ctx context.Context, prefs LocationPrefs) (State, <-chan State) {
	o.mu.Lock()
	o.settings.Location = prefs
	o.mu.Unlock()
	return o.run(ctx, TriggerLocationPrefs)
}

// SetMethod replaces the computation method and syncs. The new method selects
// different cache keys, so previously cached schedules are not reused.
func (o *Orchestrator) SetMethod(ctx context.Context, method Method) (State, <-chan State) {
	o.mu.Lock()
	o.settings.Method = method
	o.mu.Unlock()
	return o.run(ctx, TriggerMethod)
}

// Settings returns the current preferences.
func (o *Orchestrator) Settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Snapshot returns the last published State with the countdown re-derived for
// the current instant.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()
	o.derive(&state, o.clock.Now())
	return state
}

// ArmIftarReminder arms a reminder for today's sunset as currently known,
// using the configured lead time.
func (o *Orchestrator) ArmIftarReminder(ctx context.Context) (ReminderState, error) {
	state := o.Snapshot()
	settings := o.Settings()
	if state.Today == nil {
		return ReminderState{}, ErrNoDataAvailable
	}
	iftar, err := state.Today.SunsetAt(o.clock.Now().Location())
	if err != nil {
		return ReminderState{}, fmt.Errorf("computing iftar instant: %w", err)
	}
	msg := IftarReminderMessage(settings.Locale, settings.LeadMinutes, state.Today.Sunset)
	return o.reminders.Arm(ctx, iftar, settings.LeadMinutes, msg)
}

// Calendar loads a gregorian month of schedules for the current location.
func (o *Orchestrator) Calendar(ctx context.Context, year int, month time.Month) Lookup[[]DailySchedule] {
	at := o.location(ctx).Coordinates
	method := o.Settings().Method
	key := MonthKey(year, month, at, method)
	return o.monthly.Get(ctx, key, func(ctx context.Context) ([]DailySchedule, error) {
		raw, err := o.source.FetchCalendarMonth(ctx, at, year, month, method)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar %04d-%02d: %w", year, int(month), err)
		}
		if err := ValidateRawDays(raw); err != nil {
			return nil, fmt.Errorf("calendar %04d-%02d: %w", year, int(month), err)
		}
		days := make([]DailySchedule, 0, len(raw))
		for _, r := range raw {
			days = append(days, NewDailySchedule(r, o.logger))
		}
		return days, nil
	})
}

// Ramadan loads a hijri month as a fasting calendar. adjustment shifts the
// hijri day numbers for local moon sighting.
func (o *Orchestrator) Ramadan(ctx context.Context, hijriYear, hijriMonth, adjustment int) Lookup[[]RamadanDay] {
	at := o.location(ctx).Coordinates
	method := o.Settings().Method
	key := fmt.Sprintf("%s|adj%d", HijriMonthKey(hijriYear, hijriMonth, at, method), adjustment)
	return o.ramadan.Get(ctx, key, func(ctx context.Context) ([]RamadanDay, error) {
		raw, err := o.source.FetchHijriMonth(ctx, at, hijriYear, hijriMonth, method)
		if err != nil {
			return nil, fmt.Errorf("fetching hijri month %d/%d: %w", hijriMonth, hijriYear, err)
		}
		if err := ValidateRawDays(raw); err != nil {
			return nil, fmt.Errorf("hijri month %d/%d: %w", hijriMonth, hijriYear, err)
		}
		return RamadanDays(raw, adjustment, o.logger), nil
	})
}

// location returns the location of the last cycle, falling back to the
// persisted one and then to a fresh resolution.
func (o *Orchestrator) location(ctx context.Context) ResolvedLocation {
	o.mu.Lock()
	loc := o.state.Location
	prefs := o.settings.Location
	o.mu.Unlock()
	if loc.Source != "" {
		return loc
	}
	if last, ok := o.resolver.LastResolved(ctx); ok {
		return last
	}
	return o.resolver.Resolve(ctx, prefs)
}

func (o *Orchestrator) run(ctx context.Context, trigger Trigger) (State, <-chan State) {
	o.mu.Lock()
	o.cycle++
	cycle := o.cycle
	settings := o.settings
	online := o.online
	o.mu.Unlock()

	o.logger.Debug("sync cycle started", "cycle", cycle, "trigger", trigger, "online", online)

	var loc ResolvedLocation
	if online {
		loc = o.resolver.Resolve(ctx, settings.Location)
	} else if last, ok := o.resolver.LastResolved(ctx); ok {
		loc = last
	} else {
		loc = ResolvedLocation{Coordinates: DefaultCoordinates, Source: SourceDefault}
	}

	now := o.clock.Now()
	y, m, d := now.Date()
	todayDate := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	tomorrowDate := todayDate.AddDate(0, 0, 1)
	todayKey := DailyKey(todayDate, loc.Coordinates, settings.Method)
	tomorrowKey := DailyKey(tomorrowDate, loc.Coordinates, settings.Method)

	c := &cycleState{
		state: State{Location: loc, Online: online, Trigger: trigger, Status: StatusLoading},
	}

	done := make(chan State, 1)
	if !online {
		if snap, ok := o.daily.Peek(ctx, todayKey); ok {
			c.apply(0, EventUpdated, snap)
		}
		if snap, ok := o.daily.Peek(ctx, tomorrowKey); ok {
			c.apply(1, EventUpdated, snap)
		}
		c.state.Status = StatusOffline
		state := o.publish(cycle, c.state, settings)
		done <- state
		close(done)
		return state, done
	}

	lookups := [2]Lookup[DailySchedule]{
		o.daily.Get(ctx, todayKey, o.dailyFetcher(loc.Coordinates, todayDate, settings.Method)),
		o.daily.Get(ctx, tomorrowKey, o.dailyFetcher(loc.Coordinates, tomorrowDate, settings.Method)),
	}
	for i, l := range lookups {
		if l.Snapshot != nil {
			c.set(i, l.Snapshot)
		}
	}
	c.updateStatus()
	provisional := o.publish(cycle, c.state, settings)

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		var mu sync.Mutex
		for i, l := range lookups {
			i, l := i, l
			wg.Add(1)
			go func() {
				defer wg.Done()
				ev := <-l.Refresh
				mu.Lock()
				defer mu.Unlock()
				c.apply(i, ev.Kind, ev.Snapshot)
				c.updateStatus()
				o.publish(cycle, c.state, settings)
			}()
		}
		wg.Wait()
		done <- o.publish(cycle, c.state, settings)
	}()

	return provisional, done
}

func (o *Orchestrator) dailyFetcher(at Coordinates, date time.Time, method Method) Fetcher[DailySchedule] {
	return func(ctx context.Context) (DailySchedule, error) {
		raw, err := o.source.FetchDailyTimes(ctx, at, date, method)
		if err != nil {
			return DailySchedule{}, fmt.Errorf("fetching timings for %s: %w", date.Format(DateLayout), err)
		}
		if raw.Date == "" {
			raw.Date = date.Format(DateLayout)
		}
		if err := raw.Validate(); err != nil {
			return DailySchedule{}, err
		}
		return NewDailySchedule(raw, o.logger), nil
	}
}

// publish stores state and notifies listeners, unless a newer cycle has
// started. It returns the state as derived for now.
func (o *Orchestrator) publish(cycle uint64, state State, settings Settings) State {
	o.deriveWith(&state, o.clock.Now(), settings.ImsakOffsetMinute)

	o.mu.Lock()
	if cycle != o.cycle {
		o.mu.Unlock()
		o.logger.Debug("dropping result of superseded cycle", "cycle", cycle)
		return state
	}
	o.state = state
	listeners := append([]func(State){}, o.listeners...)
	o.mu.Unlock()

	for _, f := range listeners {
		f(state)
	}
	return state
}

func (o *Orchestrator) derive(state *State, now time.Time) {
	o.deriveWith(state, now, o.Settings().ImsakOffsetMinute)
}

func (o *Orchestrator) deriveWith(state *State, now time.Time, imsakOffset int) {
	state.Countdown = nil
	state.SehriEnd = time.Time{}
	state.Iftar = time.Time{}
	if state.Today == nil {
		return
	}
	loc := now.Location()
	if t, err := state.Today.SehriEndAt(loc, imsakOffset); err == nil {
		state.SehriEnd = t
	}
	if t, err := state.Today.SunsetAt(loc); err == nil {
		state.Iftar = t
	}

	tomorrow := state.Tomorrow
	if tomorrow == nil {
		// Without tomorrow's data, approximate it with today's timings.
		approx := *state.Today
		if day, err := state.Today.Day(loc); err == nil {
			approx.Date = day.AddDate(0, 0, 1).Format(DateLayout)
		}
		tomorrow = &approx
	}
	target, err := DeriveCountdown(now, *state.Today, *tomorrow)
	if err != nil {
		o.logger.Warn("deriving countdown", "error", err)
		return
	}
	state.Countdown = &target
}

// cycleState accumulates the outcome of the two lookups of one cycle.
type cycleState struct {
	state State
	kinds [2]EventKind
	have  [2]bool
}

func (c *cycleState) apply(i int, kind EventKind, snap *Snapshot[DailySchedule]) {
	c.kinds[i] = kind
	if snap != nil {
		c.set(i, snap)
	}
}

func (c *cycleState) set(i int, snap *Snapshot[DailySchedule]) {
	day := snap.Payload
	c.have[i] = true
	if i == 0 {
		c.state.Today = &day
		c.state.UpdatedAt = snap.CapturedAt
		return
	}
	c.state.Tomorrow = &day
}

func (c *cycleState) updateStatus() {
	pending, failed := false, false
	for _, k := range c.kinds {
		switch k {
		case "":
			pending = true
		case EventStale, EventFailed:
			failed = true
		}
	}
	switch {
	case failed && !c.have[0]:
		c.state.Status = StatusUnavailable
	case failed:
		c.state.Status = StatusStale
	case pending && c.have[0]:
		c.state.Status = StatusCached
	case pending:
		c.state.Status = StatusLoading
	default:
		c.state.Status = StatusUpdated
	}
}

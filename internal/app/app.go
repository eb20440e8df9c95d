package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"sehri-go/internal/calendar"
	"sehri-go/internal/config"
	"sehri-go/internal/encryption"
	"sehri-go/internal/geo"
	"sehri-go/internal/notify"
	"sehri-go/internal/sehri"
	"sehri-go/internal/store"
	"sehri-go/internal/timesource"
)

// ErrPassphraseRequired is returned when the store is encrypted and no
// passphrase was supplied.
var ErrPassphraseRequired = errors.New("encrypted store requires a passphrase")

// ramadanMonth is the hijri month number of Ramadan.
const ramadanMonth = 9

// SehriApp is the application layer between the CLI and the engine.
// It constructs all collaborators from config, exposes high-level operations
// and releases connections on Close.
type SehriApp struct {
	cfg       *config.Config
	loc       *time.Location
	clock     sehri.Clock
	store     sehri.Store
	notifier  sehri.Notifier
	cities    *geo.Cities
	reminders *sehri.ReminderScheduler
	orch      *sehri.Orchestrator
	logger    sehri.Logger
	op        *Operation
	logFile   *os.File
}

// Options are the per-invocation inputs that do not live in the config file.
type Options struct {
	Operation  string    // CLI command being run, e.g. "Today" or "Serve"
	Passphrase string    // unlocks an encrypted store
	Verbose    bool      // mirror log records to stderr
	Out        io.Writer // console notifications; defaults to os.Stdout
}

// collaborators are the engine's injected dependencies.
type collaborators struct {
	store     sehri.Store
	source    sehri.TimeSource
	geo       sehri.Geolocator
	perms     sehri.PermissionProvider
	cities    *geo.Cities
	notifier  sehri.Notifier
	vibrator  sehri.Vibrator
	clock     sehri.Clock
	afterFunc sehri.AfterFunc
	ids       sehri.IDGenerator
	logger    sehri.Logger
}

// NewSehriApp creates a fully wired SehriApp from the given config.
// The caller must call Close when done.
func NewSehriApp(ctx context.Context, cfg *config.Config, opts Options) (*SehriApp, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	clk := zonedClock{Clock: sehri.SystemClock(), loc: loc}
	op := NewOperation(opts.Operation, clk.Now())

	l, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	st, err := openStore(ctx, cfg, opts.Passphrase)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	notifier, err := notify.NewNotifierFromConfig(cfg.Notifier, out, clk)
	if err != nil {
		store.Close(st)
		logFile.Close()
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	cities, err := geo.DefaultCities()
	if err != nil {
		store.Close(st)
		logFile.Close()
		return nil, fmt.Errorf("loading city table: %w", err)
	}

	c := collaborators{
		store:     st,
		source:    timesource.NewClientFromConfig(cfg.TimeSource, logger),
		perms:     geo.NewPermissionFromConfig(cfg.Location),
		cities:    cities,
		notifier:  notifier,
		vibrator:  notify.NewVibratorFromConfig(cfg.Notifier, out),
		clock:     clk,
		afterFunc: sehri.RealAfterFunc,
		ids:       sehri.UUIDGenerator{},
		logger:    logger,
	}
	if g := geo.NewIPGeolocatorFromConfig(cfg.Location); g != nil {
		c.geo = g
	}

	a := newSehriApp(cfg, loc, op, c)
	a.logFile = logFile
	logger.Info("operation started", "operation", op.Name, "store", cfg.Store.Type, "notifier", cfg.Notifier.Type)
	return a, nil
}

func newSehriApp(cfg *config.Config, loc *time.Location, op *Operation, c collaborators) *SehriApp {
	var cities sehri.CityTable
	if c.cities != nil {
		cities = c.cities
	}
	resolver := sehri.NewLocationResolver(c.geo, c.perms, cities, c.store, c.logger)
	reminders := sehri.NewReminderScheduler(c.store, c.notifier, c.vibrator, c.logger, c.clock, c.afterFunc, c.ids)
	orch := sehri.NewOrchestrator(resolver, c.source, c.store, reminders, c.logger, c.clock, settingsFromConfig(cfg))

	return &SehriApp{
		cfg:       cfg,
		loc:       loc,
		clock:     c.clock,
		store:     c.store,
		notifier:  c.notifier,
		cities:    c.cities,
		reminders: reminders,
		orch:      orch,
		logger:    c.logger,
		op:        op,
	}
}

// openStore builds the configured store and unlocks it when encrypted.
func openStore(ctx context.Context, cfg *config.Config, passphrase string) (sehri.Store, error) {
	var enc sehri.Encryptor
	if cfg.Store.Encrypted {
		e, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !e.IsConfigured() {
			return nil, fmt.Errorf("encrypted store has no keys: run 'sehri keys init' first")
		}
		enc = e
	}

	st, err := store.NewStoreFromConfig(ctx, cfg.Store, enc)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if es, ok := st.(*store.EncryptedStore); ok {
		if passphrase == "" {
			store.Close(st)
			return nil, ErrPassphraseRequired
		}
		if err := es.Unlock(passphrase); err != nil {
			store.Close(st)
			return nil, fmt.Errorf("unlocking store: %w", err)
		}
	}
	return st, nil
}

func settingsFromConfig(cfg *config.Config) sehri.Settings {
	prefs := sehri.LocationPrefs{
		UseLive: cfg.Location.UseLive,
		City:    cfg.Location.City,
	}
	if cfg.Location.HasCoordinates() {
		prefs.Coordinates = &sehri.Coordinates{
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
		}
	}
	return sehri.Settings{
		Location:          prefs,
		Method:            sehri.Method{ID: cfg.Schedule.Method, School: cfg.Schedule.School},
		LeadMinutes:       cfg.Schedule.ReminderLeadMin,
		ImsakOffsetMinute: cfg.Schedule.ImsakOffsetMin,
		Locale:            sehri.Locale(cfg.Locale),
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// zonedClock reports the wall clock in the configured timezone so that
// schedule instants are built in it.
type zonedClock struct {
	sehri.Clock
	loc *time.Location
}

func (c zonedClock) Now() time.Time { return c.Clock.Now().In(c.loc) }

// Now returns the current time in the configured timezone.
func (a *SehriApp) Now() time.Time {
	return a.clock.Now()
}

// Settings returns the preferences the engine runs with.
func (a *SehriApp) Settings() sehri.Settings {
	return a.orch.Settings()
}

// Today runs a sync cycle and returns its final state. A state without
// today's schedule is returned together with ErrNoDataAvailable.
func (a *SehriApp) Today(ctx context.Context) (sehri.State, error) {
	_, done := a.orch.Mount(ctx)
	select {
	case s := <-done:
		if s.Today == nil {
			return s, sehri.ErrNoDataAvailable
		}
		return s, nil
	case <-ctx.Done():
		return a.orch.Snapshot(), context.Cause(ctx)
	}
}

// Countdown syncs and returns the current countdown target.
func (a *SehriApp) Countdown(ctx context.Context) (sehri.CountdownTarget, error) {
	s, err := a.Today(ctx)
	if err != nil {
		return sehri.CountdownTarget{}, err
	}
	if s.Countdown == nil {
		return sehri.CountdownTarget{}, fmt.Errorf("countdown unavailable for %s", s.Today.Date)
	}
	return *s.Countdown, nil
}

// ArmReminder syncs today's schedule and arms the iftar reminder. The
// reminder is persisted; a process that exits before it fires leaves it for
// the next Serve to restore.
func (a *SehriApp) ArmReminder(ctx context.Context) (sehri.ReminderState, error) {
	if _, err := a.Today(ctx); err != nil {
		return sehri.ReminderState{}, err
	}
	return a.orch.ArmIftarReminder(ctx)
}

// CancelReminder clears the armed reminder.
func (a *SehriApp) CancelReminder(ctx context.Context) {
	a.reminders.Cancel(ctx)
}

// OnReminderFired registers f to run after a reminder armed by this process
// is delivered.
func (a *SehriApp) OnReminderFired(f func(sehri.ReminderState)) {
	a.reminders.OnFired(f)
}

// PendingReminder reads the persisted reminder, which may be owned by another
// process.
func (a *SehriApp) PendingReminder(ctx context.Context) (sehri.ReminderState, bool) {
	return a.reminders.Pending(ctx)
}

// Calendar returns the schedules of a gregorian month.
func (a *SehriApp) Calendar(ctx context.Context, year int, month time.Month) ([]sehri.DailySchedule, error) {
	return payload(a.logger, a.orch.Calendar(ctx, year, month).Wait(ctx))
}

// Ramadan returns the fasting calendar of the given hijri year, with day
// numbers shifted by the configured moon-sighting adjustment.
func (a *SehriApp) Ramadan(ctx context.Context, hijriYear int) ([]sehri.RamadanDay, error) {
	lookup := a.orch.Ramadan(ctx, hijriYear, ramadanMonth, a.cfg.Schedule.HijriAdjustment)
	return payload(a.logger, lookup.Wait(ctx))
}

// ExportCalendar writes sehri and iftar events for every day from from to to
// inclusive as an iCalendar document.
func (a *SehriApp) ExportCalendar(ctx context.Context, w io.Writer, from, to time.Time) error {
	days, err := calendar.Days(from.In(a.loc), to.In(a.loc))
	if err != nil {
		return err
	}
	return a.exportDays(ctx, w, days)
}

func (a *SehriApp) exportDays(ctx context.Context, w io.Writer, days []time.Time) error {
	type monthKey struct {
		year  int
		month time.Month
	}
	months := make(map[monthKey]map[string]sehri.DailySchedule)

	schedules := make([]sehri.DailySchedule, 0, len(days))
	for _, d := range days {
		k := monthKey{d.Year(), d.Month()}
		byDate, ok := months[k]
		if !ok {
			list, err := a.Calendar(ctx, k.year, k.month)
			if err != nil {
				return fmt.Errorf("loading %04d-%02d: %w", k.year, int(k.month), err)
			}
			byDate = make(map[string]sehri.DailySchedule, len(list))
			for _, s := range list {
				byDate[s.Date] = s
			}
			months[k] = byDate
		}

		date := d.Format(sehri.DateLayout)
		s, ok := byDate[date]
		if !ok {
			a.logger.Warn("no schedule for day, skipping", "date", date)
			continue
		}
		schedules = append(schedules, s)
	}

	settings := a.orch.Settings()
	return calendar.Export(w, schedules, calendar.ExportOptions{
		Location:          a.loc,
		ImsakOffsetMinute: settings.ImsakOffsetMinute,
		ReminderLead:      settings.LeadMinutes,
		Locale:            settings.Locale,
		Place:             a.orch.Snapshot().Location.City,
		Now:               a.clock.Now(),
	})
}

// payload unwraps a cache event, logging when a stale snapshot is served.
func payload[T any](logger sehri.Logger, ev sehri.Event[T]) (T, error) {
	var zero T
	if ev.Snapshot == nil {
		if ev.Err == nil {
			return zero, sehri.ErrNoDataAvailable
		}
		return zero, ev.Err
	}
	if ev.Kind == sehri.EventStale {
		logger.Warn("serving stale snapshot", "key", ev.Key, "captured_at", ev.Snapshot.CapturedAt, "error", ev.Err)
	}
	return ev.Snapshot.Payload, nil
}

// upcomingRamadanYear estimates the hijri year of the current or next
// Ramadan from the mean length of the hijri year.
func upcomingRamadanYear(t time.Time) int {
	const (
		hijriEpochJD = 1948439.5 // 1 Muharram 1 AH
		meanYearDays = 354.36667
	)
	jd := float64(t.Unix())/86400 + 2440587.5
	years := (jd - hijriEpochJD) / meanYearDays
	year := int(math.Floor(years)) + 1
	// Ramadan ends about three quarters of the way through the year.
	if years-math.Floor(years) > 0.75 {
		year++
	}
	return year
}

// UpcomingRamadanYear returns the hijri year of the current or next Ramadan.
func (a *SehriApp) UpcomingRamadanYear() int {
	return upcomingRamadanYear(a.clock.Now())
}

// Fail marks the running operation as failed; Close logs the outcome.
func (a *SehriApp) Fail() {
	a.op.Fail()
}

// Close releases the store connection, the notifier and the log file.
func (a *SehriApp) Close() error {
	var firstErr error

	if err := store.Close(a.store); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if c, ok := a.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing notifier: %w", err)
		}
	}

	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", a.op.Elapsed(a.clock.Now()))
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

package sehri

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReminderPattern is the vibration played when a reminder fires.
var ReminderPattern = []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}

// Message is the notification shown when a reminder fires.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ReminderState is the persisted record of an armed reminder. ScheduledFor,
// not the in-process timer, is the durable source of truth.
type ReminderState struct {
	ID           string    `json:"id"`
	Active       bool      `json:"is_active"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Target       time.Time `json:"target"`
	LeadMinutes  int       `json:"lead_minutes"`
	Message      Message   `json:"message"`
}

// ReminderStatus is the side-effect-free view returned by Status.
type ReminderStatus struct {
	Active       bool      `json:"active"`
	ScheduledFor time.Time `json:"scheduled_for,omitzero"`
	Target       time.Time `json:"target,omitzero"`
}

// ReminderScheduler arms at most one deferred notification at a time and
// persists it so Restore can re-arm it after a restart.
type ReminderScheduler struct {
	store     Store
	notifier  Notifier
	vibrator  Vibrator
	logger    Logger
	clock     Clock
	afterFunc AfterFunc
	idgen     IDGenerator

	mu      sync.Mutex
	timer   Timer
	current *ReminderState
	fired   func(ReminderState)
}

// NewReminderScheduler creates a scheduler. vibrator may be nil.
func NewReminderScheduler(store Store, notifier Notifier, vibrator Vibrator, logger Logger, clock Clock, afterFunc AfterFunc, idgen IDGenerator) *ReminderScheduler {
	return &ReminderScheduler{
		store:     store,
		notifier:  notifier,
		vibrator:  vibrator,
		logger:    logger,
		clock:     clock,
		afterFunc: afterFunc,
		idgen:     idgen,
	}
}

// OnFired registers f to be called after a reminder has been shown.
func (s *ReminderScheduler) OnFired(f func(ReminderState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = f
}

// Arm schedules msg to be shown leadMinutes before target, replacing any armed
// reminder. It returns *AlreadyPastError if that moment is not in the future
// and ErrNotificationDenied if the notifier refuses permission.
func (s *ReminderScheduler) Arm(ctx context.Context, target time.Time, leadMinutes int, msg Message) (ReminderState, error) {
	fireAt := target.Add(-time.Duration(leadMinutes) * time.Minute)
	now := s.clock.Now()
	if !fireAt.After(now) {
		return ReminderState{}, &AlreadyPastError{FireAt: fireAt, Now: now}
	}

	if err := s.ensurePermission(ctx); err != nil {
		return ReminderState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(ctx)

	state := ReminderState{
		ID:           s.idgen.New(),
		Active:       true,
		ScheduledFor: fireAt,
		Target:       target,
		LeadMinutes:  leadMinutes,
		Message:      msg,
	}
	// Persist before the timer exists so a restart in between can recover it.
	saveJSON(ctx, s.store, s.logger, keyReminder, state)
	s.startLocked(state, fireAt.Sub(s.clock.Now()))

	s.logger.Info("reminder armed", "id", state.ID, "fire_at", fireAt, "target", target)
	return state, nil
}

// Cancel stops the armed reminder and clears its persisted state. Cancelling
// an idle scheduler is a no-op.
func (s *ReminderScheduler) Cancel(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(ctx)
}

// Restore re-arms a persisted reminder whose fire time is still ahead. A
// reminder whose fire time has passed is cleared without notifying. With
// nothing persisted it leaves any timer of this process alone and reports it,
// so Restore and Status agree.
func (s *ReminderScheduler) Restore(ctx context.Context) ReminderStatus {
	state, ok := loadJSON[ReminderState](ctx, s.store, s.logger, keyReminder)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		return s.statusLocked()
	}

	now := s.clock.Now()
	if !state.Active || !state.ScheduledFor.After(now) {
		s.logger.Info("discarding missed reminder", "id", state.ID, "scheduled_for", state.ScheduledFor)
		s.cancelLocked(ctx)
		return ReminderStatus{}
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.startLocked(state, state.ScheduledFor.Sub(now))
	s.logger.Info("reminder restored", "id", state.ID, "fire_at", state.ScheduledFor)
	return s.statusLocked()
}

// Status reports the reminder armed in this process.
func (s *ReminderScheduler) Status() ReminderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Pending reads the persisted reminder without arming or clearing anything.
// Another process may own its timer.
func (s *ReminderScheduler) Pending(ctx context.Context) (ReminderState, bool) {
	state, ok := loadJSON[ReminderState](ctx, s.store, s.logger, keyReminder)
	if !ok || !state.Active {
		return ReminderState{}, false
	}
	return state, true
}

func (s *ReminderScheduler) ensurePermission(ctx context.Context) error {
	switch s.notifier.PermissionState(ctx) {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return ErrNotificationDenied
	}
	state, err := s.notifier.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting notification permission: %w", err)
	}
	if state != PermissionGranted {
		return ErrNotificationDenied
	}
	return nil
}

func (s *ReminderScheduler) startLocked(state ReminderState, delay time.Duration) {
	st := state
	s.current = &st
	s.timer = s.afterFunc(delay, func() { s.fire(st.ID) })
}

func (s *ReminderScheduler) cancelLocked(ctx context.Context) {
	if s.timer != nil {
		s.timer.Stop()
		s.logger.Info("reminder cancelled", "id", s.current.ID)
	}
	s.timer = nil
	s.current = nil
	deleteKey(ctx, s.store, s.logger, keyReminder)
}

func (s *ReminderScheduler) statusLocked() ReminderStatus {
	if s.current == nil {
		return ReminderStatus{}
	}
	return ReminderStatus{Active: true, ScheduledFor: s.current.ScheduledFor, Target: s.current.Target}
}

// fire runs on the timer goroutine. A timer that lost a race with Cancel or a
// newer Arm finds a different ID and does nothing.
func (s *ReminderScheduler) fire(id string) {
	ctx := context.Background()

	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return
	}
	state := *s.current
	s.current = nil
	s.timer = nil
	if persisted, ok := loadJSON[ReminderState](ctx, s.store, s.logger, keyReminder); ok && persisted.ID == id {
		deleteKey(ctx, s.store, s.logger, keyReminder)
	}
	fired := s.fired
	s.mu.Unlock()

	if err := s.notifier.Show(ctx, state.Message.Title, state.Message.Body); err != nil {
		s.logger.Error("showing reminder notification", "id", id, "error", err)
	}
	if s.vibrator != nil {
		if err := s.vibrator.Vibrate(ReminderPattern); err != nil {
			s.logger.Debug("vibration unavailable", "error", err)
		}
	}
	s.logger.Info("reminder fired", "id", id, "target", state.Target)
	if fired != nil {
		fired(state)
	}
}

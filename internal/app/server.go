package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sehri-go/internal/calendar"
	"sehri-go/internal/sehri"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	defaultICSDays    = 30
)

// Serve runs until ctx is cancelled. It restores a persisted reminder, runs
// the initial sync, schedules the background jobs and serves the HTTP API.
func (a *SehriApp) Serve(ctx context.Context) error {
	a.reminders.OnFired(func(s sehri.ReminderState) {
		a.logger.Info("reminder delivered", "id", s.ID, "target", s.Target)
	})
	if status := a.reminders.Restore(ctx); status.Active {
		a.logger.Info("reminder pending", "scheduled_for", status.ScheduledFor)
	}

	_, done := a.orch.Mount(ctx)
	go func() {
		s := <-done
		a.logger.Info("initial sync finished", "status", s.Status, "location", s.Location.Source, "city", s.Location.City)
	}()

	var probe connectivityChecker
	if a.cfg.Server.ProbeURL != "" {
		probe = newHTTPProbe(a.cfg.Server.ProbeURL)
	}
	sched, err := a.startJobs(ctx, probe)
	if err != nil {
		return err
	}
	defer sched.Shutdown()

	srv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// Handler builds the HTTP API router.
func (a *SehriApp) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/health", a.handleHealth)
	r.Get("/calendar.ics", a.handleICS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/today", a.handleToday)
		r.Get("/countdown", a.handleCountdown)
		r.Get("/calendar", a.handleCalendar)
		r.Get("/ramadan", a.handleRamadan)

		r.Route("/reminder", func(r chi.Router) {
			r.Get("/", a.handleReminderStatus)
			r.Post("/", a.handleArmReminder)
			r.Delete("/", a.handleCancelReminder)
		})
	})

	return r
}

func (a *SehriApp) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

// apiError is the body of every non-2xx JSON response.
type apiError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Status: status, Message: message})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var past *sehri.AlreadyPastError
	switch {
	case errors.Is(err, sehri.ErrNoDataAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, sehri.ErrNotificationDenied):
		return http.StatusForbidden
	case errors.As(err, &past):
		return http.StatusConflict
	case errors.Is(err, sehri.ErrRefreshFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *SehriApp) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s := a.orch.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"schedule_status": s.Status,
		"online":          s.Online,
	})
}

func (a *SehriApp) handleToday(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.orch.Snapshot())
}

// countdownResponse is the body of GET /api/countdown.
type countdownResponse struct {
	Label        sehri.CountdownLabel `json:"label"`
	Caption      string               `json:"caption"`
	Instant      time.Time            `json:"instant"`
	RemainingSec int64                `json:"remaining_sec"`
	Remaining    string               `json:"remaining"`
}

func (a *SehriApp) handleCountdown(w http.ResponseWriter, _ *http.Request) {
	s := a.orch.Snapshot()
	if s.Countdown == nil {
		writeError(w, http.StatusServiceUnavailable, sehri.ErrNoDataAvailable.Error())
		return
	}
	remaining := s.Countdown.Remaining(a.clock.Now())
	writeJSON(w, http.StatusOK, countdownResponse{
		Label:        s.Countdown.Label,
		Caption:      sehri.CountdownCaption(s.Countdown.Label, a.orch.Settings().Locale),
		Instant:      s.Countdown.Instant,
		RemainingSec: int64(remaining / time.Second),
		Remaining:    sehri.FormatDuration(remaining),
	})
}

func (a *SehriApp) handleReminderStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.reminders.Status())
}

func (a *SehriApp) handleArmReminder(w http.ResponseWriter, r *http.Request) {
	state, err := a.orch.ArmIftarReminder(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (a *SehriApp) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	a.reminders.Cancel(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *SehriApp) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := a.clock.Now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	days, err := a.Calendar(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (a *SehriApp) handleRamadan(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", a.UpcomingRamadanYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := a.Ramadan(r.Context(), year)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (a *SehriApp) handleICS(w http.ResponseWriter, r *http.Request) {
	now := a.clock.Now()
	from, err := dateParam(r, "from", now, a.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := dateParam(r, "to", from.AddDate(0, 0, defaultICSDays-1), a.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := calendar.Days(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := a.exportDays(r.Context(), &buf, days); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sehri.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func dateParam(r *http.Request, name string, def time.Time, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(sehri.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", name, raw)
	}
	return t, nil
}

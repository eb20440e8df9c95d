package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sehri-go/internal/sehri"
)

// FakeTimeSource serves canned days keyed by YYYY-MM-DD.
type FakeTimeSource struct {
	mu     sync.Mutex
	Days   map[string]sehri.RawDay
	Months map[string][]sehri.RawDay // "2026-03" or "h1447-09"
	Err    error
	calls  int
}

func NewFakeTimeSource() *FakeTimeSource {
	return &FakeTimeSource{
		Days:   make(map[string]sehri.RawDay),
		Months: make(map[string][]sehri.RawDay),
	}
}

// SetDay registers the timings returned for date.
func (f *FakeTimeSource) SetDay(date, fajr, maghrib string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Days[date] = sehri.RawDay{
		Date:    date,
		Timings: map[string]string{sehri.TimingFajr: fajr, sehri.TimingMaghrib: maghrib},
	}
}

// SetErr makes every subsequent fetch fail with err.
func (f *FakeTimeSource) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Calls returns the number of fetches served.
func (f *FakeTimeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTimeSource) FetchDailyTimes(_ context.Context, _ sehri.Coordinates, date time.Time, _ sehri.Method) (sehri.RawDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return sehri.RawDay{}, f.Err
	}
	day, ok := f.Days[date.Format(sehri.DateLayout)]
	if !ok {
		return sehri.RawDay{}, fmt.Errorf("no timings for %s", date.Format(sehri.DateLayout))
	}
	return day, nil
}

func (f *FakeTimeSource) FetchCalendarMonth(_ context.Context, _ sehri.Coordinates, year int, month time.Month, _ sehri.Method) ([]sehri.RawDay, error) {
	return f.month(fmt.Sprintf("%04d-%02d", year, int(month)))
}

func (f *FakeTimeSource) FetchHijriMonth(_ context.Context, _ sehri.Coordinates, hijriYear, hijriMonth int, _ sehri.Method) ([]sehri.RawDay, error) {
	return f.month(fmt.Sprintf("h%04d-%02d", hijriYear, hijriMonth))
}

func (f *FakeTimeSource) month(key string) ([]sehri.RawDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	days, ok := f.Months[key]
	if !ok {
		return nil, fmt.Errorf("no month %s", key)
	}
	return days, nil
}

// GeoAttempt records one call to FakeGeolocator.RequestPosition.
type GeoAttempt struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// FakeGeolocator answers positioning requests from a queue of results. When
// the queue is empty it fails with LiveUnavailable.
type FakeGeolocator struct {
	mu       sync.Mutex
	results  []GeoResult
	Attempts []GeoAttempt
}

// GeoResult is one queued answer.
type GeoResult struct {
	At  sehri.Coordinates
	Err error
}

func NewFakeGeolocator(results ...GeoResult) *FakeGeolocator {
	return &FakeGeolocator{results: results}
}

func (g *FakeGeolocator) RequestPosition(_ context.Context, highAccuracy bool, timeout time.Duration) (sehri.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Attempts = append(g.Attempts, GeoAttempt{HighAccuracy: highAccuracy, Timeout: timeout})
	if len(g.results) == 0 {
		return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveUnavailable}
	}
	r := g.results[0]
	g.results = g.results[1:]
	return r.At, r.Err
}

// StaticPermission always reports the same location permission.
type StaticPermission sehri.PermissionState

func (p StaticPermission) LocationPermission(context.Context) sehri.PermissionState {
	return sehri.PermissionState(p)
}

// FakeNotifier records shown notifications.
type FakeNotifier struct {
	mu        sync.Mutex
	State     sehri.PermissionState
	OnRequest sehri.PermissionState
	Requests  int
	Shown     []sehri.Message
}

// NewFakeNotifier returns a notifier whose permission is already granted.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{State: sehri.PermissionGranted, OnRequest: sehri.PermissionGranted}
}

func (n *FakeNotifier) PermissionState(context.Context) sehri.PermissionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.State
}

func (n *FakeNotifier) RequestPermission(context.Context) (sehri.PermissionState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Requests++
	n.State = n.OnRequest
	return n.State, nil
}

func (n *FakeNotifier) Show(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Shown = append(n.Shown, sehri.Message{Title: title, Body: body})
	return nil
}

// ShownCount returns the number of notifications shown so far.
func (n *FakeNotifier) ShownCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Shown)
}

// FakeVibrator counts vibrations. With Fail set it reports an error instead.
type FakeVibrator struct {
	mu    sync.Mutex
	Fail  bool
	Count int
}

func (v *FakeVibrator) Vibrate([]time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Fail {
		return errors.New("vibration not supported")
	}
	v.Count++
	return nil
}

// CityMap is a sehri.CityTable over a plain map. NearestCity always reports
// no match.
type CityMap map[string]sehri.Coordinates

func (m CityMap) LookupCity(name string) (sehri.Coordinates, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return sehri.Coordinates{}, false
}

func (m CityMap) NearestCity(sehri.Coordinates) (string, bool) { return "", false }

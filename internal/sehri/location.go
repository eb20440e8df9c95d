package sehri

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// DefaultCoordinates is the last-resort location (Dhaka).
var DefaultCoordinates = Coordinates{Latitude: 23.8103, Longitude: 90.4125}

// LiveAttemptTimeout bounds each live positioning attempt.
const LiveAttemptTimeout = 10 * time.Second

// SourceKind records which tier produced a ResolvedLocation.
type SourceKind string

const (
	SourceLive             SourceKind = "live"
	SourceSavedCoordinates SourceKind = "saved_coordinates"
	SourceSavedCity        SourceKind = "saved_city"
	SourceDefault          SourceKind = "default"
)

// LiveStatus is the soft outcome of the live tier.
type LiveStatus string

const (
	LiveOK                 LiveStatus = ""
	LiveDisabled           LiveStatus = "disabled"
	LivePermissionRequired LiveStatus = "permission_required"
	LivePermissionDenied   LiveStatus = "permission_denied"
	LiveTimeout            LiveStatus = "timeout"
	LiveUnavailable        LiveStatus = "unavailable"
)

// PositionError is returned by a Geolocator. It matches ErrLocationUnavailable.
type PositionError struct {
	Code LiveStatus
	Err  error
}

func (e *PositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("position %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("position %s", e.Code)
}

func (e *PositionError) Unwrap() error { return e.Err }

func (e *PositionError) Is(target error) bool { return target == ErrLocationUnavailable }

// ResolvedLocation is the outcome of LocationResolver.Resolve. Source is the
// tier that produced the coordinates; City is the matched or nearest table city.
type ResolvedLocation struct {
	Coordinates
	Source     SourceKind `json:"source"`
	City       string     `json:"city,omitempty"`
	LiveStatus LiveStatus `json:"live_status,omitempty"`
}

// LocationPrefs are the user's location settings.
type LocationPrefs struct {
	UseLive     bool
	City        string
	Coordinates *Coordinates // manually entered
}

// LocationResolver walks the location tiers in priority order: live fix,
// saved coordinates, saved city, default.
type LocationResolver struct {
	geo     Geolocator
	perms   PermissionProvider
	cities  CityTable
	store   Store
	logger  Logger
	timeout time.Duration
}

// NewLocationResolver creates a resolver. geo, perms and cities may be nil, in
// which case the corresponding tier is skipped.
func NewLocationResolver(geo Geolocator, perms PermissionProvider, cities CityTable, store Store, logger Logger) *LocationResolver {
	return &LocationResolver{
		geo:     geo,
		perms:   perms,
		cities:  cities,
		store:   store,
		logger:  logger,
		timeout: LiveAttemptTimeout,
	}
}

// Resolve never fails: a live-tier failure is reported through LiveStatus and
// resolution continues with the next tier.
func (r *LocationResolver) Resolve(ctx context.Context, prefs LocationPrefs) ResolvedLocation {
	var loc ResolvedLocation
	status := r.resolveLive(ctx, prefs, &loc)
	switch {
	case status == LiveOK:
		// live fix already in loc
	case prefs.Coordinates != nil:
		loc = ResolvedLocation{Coordinates: *prefs.Coordinates, Source: SourceSavedCoordinates}
	default:
		if saved, ok := loadJSON[Coordinates](ctx, r.store, r.logger, keySavedLocation); ok {
			loc = ResolvedLocation{Coordinates: saved, Source: SourceSavedCoordinates}
		} else if c, ok := r.lookupCity(prefs.City); ok {
			loc = ResolvedLocation{Coordinates: c, Source: SourceSavedCity, City: prefs.City}
		} else {
			loc = ResolvedLocation{Coordinates: DefaultCoordinates, Source: SourceDefault}
		}
	}
	loc.LiveStatus = status

	if loc.City == "" && r.cities != nil {
		if name, ok := r.cities.NearestCity(loc.Coordinates); ok {
			loc.City = name
		}
	}

	r.logger.Debug("location resolved", "source", loc.Source, "at", loc.Coordinates, "live_status", status)
	saveJSON(ctx, r.store, r.logger, keyLastLocation, loc)
	return loc
}

// SaveCoordinates persists c as the saved-coordinates tier.
func (r *LocationResolver) SaveCoordinates(ctx context.Context, c Coordinates) {
	saveJSON(ctx, r.store, r.logger, keySavedLocation, c)
}

// ClearSavedCoordinates forgets the saved-coordinates tier.
func (r *LocationResolver) ClearSavedCoordinates(ctx context.Context) {
	deleteKey(ctx, r.store, r.logger, keySavedLocation)
}

// LastResolved returns the most recent resolution, used when offline.
func (r *LocationResolver) LastResolved(ctx context.Context) (ResolvedLocation, bool) {
	return loadJSON[ResolvedLocation](ctx, r.store, r.logger, keyLastLocation)
}

// resolveLive attempts a high-accuracy fix and, if that errors, one
// reduced-accuracy retry. On success it fills loc and persists the fix.
func (r *LocationResolver) resolveLive(ctx context.Context, prefs LocationPrefs, loc *ResolvedLocation) LiveStatus {
	if !prefs.UseLive || r.geo == nil {
		return LiveDisabled
	}
	if r.perms != nil {
		switch r.perms.LocationPermission(ctx) {
		case PermissionGranted:
		case PermissionDenied:
			return LivePermissionDenied
		default:
			return LivePermissionRequired
		}
	}

	at, err := r.geo.RequestPosition(ctx, true, r.timeout)
	if err != nil {
		r.logger.Debug("high accuracy fix failed, retrying", "error", err)
		at, err = r.geo.RequestPosition(ctx, false, r.timeout)
	}
	if err != nil {
		status := LiveUnavailable
		var perr *PositionError
		if errors.As(err, &perr) && perr.Code != LiveOK {
			status = perr.Code
		}
		r.logger.Info("live location unavailable, falling back", "status", status, "error", err)
		return status
	}

	*loc = ResolvedLocation{Coordinates: at, Source: SourceLive}
	r.SaveCoordinates(ctx, at)
	return LiveOK
}

func (r *LocationResolver) lookupCity(name string) (Coordinates, bool) {
	if r.cities == nil || name == "" {
		return Coordinates{}, false
	}
	return r.cities.LookupCity(name)
}

package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sehri-go/internal/config"
	"sehri-go/internal/sehri"
)

// IPGeolocator derives a position from the host's public IP address. A
// high-accuracy request uses the precise endpoint; the reduced-accuracy retry
// uses the coarse one.
type IPGeolocator struct {
	preciseURL string
	coarseURL  string
	client     *http.Client
}

var _ sehri.Geolocator = (*IPGeolocator)(nil)

func NewIPGeolocator(preciseURL, coarseURL string) *IPGeolocator {
	return &IPGeolocator{
		preciseURL: preciseURL,
		coarseURL:  coarseURL,
		client:     &http.Client{},
	}
}

// NewIPGeolocatorFromConfig returns nil when no endpoint is configured, which
// disables the live tier.
func NewIPGeolocatorFromConfig(cfg config.LocationConfig) *IPGeolocator {
	if cfg.PreciseURL == "" && cfg.CoarseURL == "" {
		return nil
	}
	return NewIPGeolocator(cfg.PreciseURL, cfg.CoarseURL)
}

// ipAnswer accepts both common field spellings: ipapi.co uses
// latitude/longitude, ip-api.com uses lat/lon plus a status field.
type ipAnswer struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Error     bool     `json:"error"`
	Reason    string   `json:"reason"`
}

func (a ipAnswer) coordinates() (sehri.Coordinates, error) {
	if a.Error || a.Status == "fail" {
		return sehri.Coordinates{}, fmt.Errorf("lookup refused: %s%s", a.Reason, a.Message)
	}
	switch {
	case a.Latitude != nil && a.Longitude != nil:
		return sehri.Coordinates{Latitude: *a.Latitude, Longitude: *a.Longitude}, nil
	case a.Lat != nil && a.Lon != nil:
		return sehri.Coordinates{Latitude: *a.Lat, Longitude: *a.Lon}, nil
	}
	return sehri.Coordinates{}, errors.New("answer carries no coordinates")
}

func (g *IPGeolocator) RequestPosition(ctx context.Context, highAccuracy bool, timeout time.Duration) (sehri.Coordinates, error) {
	endpoint := g.coarseURL
	if highAccuracy || endpoint == "" {
		endpoint = g.preciseURL
	}
	if endpoint == "" {
		endpoint = g.coarseURL
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveUnavailable, Err: err}
	}
	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveTimeout, Err: err}
		}
		return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sehri.Coordinates{}, &sehri.PositionError{
			Code: sehri.LiveUnavailable,
			Err:  fmt.Errorf("geolocation endpoint returned %s", resp.Status),
		}
	}

	var answer ipAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveUnavailable, Err: err}
	}
	at, err := answer.coordinates()
	if err != nil {
		return sehri.Coordinates{}, &sehri.PositionError{Code: sehri.LiveUnavailable, Err: err}
	}
	return at, nil
}

// Permission is a sehri.PermissionProvider with a fixed answer taken from
// configuration. A headless host has no interactive prompt, so "default"
// stays "default" until the user edits the config.
type Permission sehri.PermissionState

var _ sehri.PermissionProvider = Permission("")

// NewPermissionFromConfig maps the permission setting; empty means granted.
func NewPermissionFromConfig(cfg config.LocationConfig) Permission {
	if cfg.Permission == "" {
		return Permission(sehri.PermissionGranted)
	}
	return Permission(cfg.Permission)
}

func (p Permission) LocationPermission(context.Context) sehri.PermissionState {
	return sehri.PermissionState(p)
}

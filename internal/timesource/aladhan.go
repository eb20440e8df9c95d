// Package timesource fetches prayer timings from the Al Adhan HTTP API.
package timesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sehri-go/internal/config"
	"sehri-go/internal/sehri"
)

// DefaultBaseURL is the public Al Adhan endpoint.
const DefaultBaseURL = "https://api.aladhan.com/v1"

// apiDateLayout is the DD-MM-YYYY form the API uses in paths and payloads.
const apiDateLayout = "02-01-2006"

// Client implements sehri.TimeSource against Al Adhan.
type Client struct {
	baseURL string
	http    *http.Client
	logger  sehri.Logger
}

var _ sehri.TimeSource = (*Client)(nil)

// NewClient creates a client. An empty baseURL selects DefaultBaseURL and a
// zero timeout means 15 seconds.
func NewClient(baseURL string, timeout time.Duration, logger sehri.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = sehri.NewNopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// NewClientFromConfig creates a client from the time_source section.
func NewClientFromConfig(cfg config.TimeSourceConfig, logger sehri.Logger) *Client {
	return NewClient(cfg.BaseURL, cfg.Timeout(), logger)
}

// FetchDailyTimes fetches /timings/{DD-MM-YYYY}.
func (c *Client) FetchDailyTimes(ctx context.Context, at sehri.Coordinates, date time.Time, method sehri.Method) (sehri.RawDay, error) {
	var env envelope[apiDay]
	path := "/timings/" + date.Format(apiDateLayout)
	if err := c.get(ctx, path, c.query(at, method), &env); err != nil {
		return sehri.RawDay{}, err
	}
	if err := checkCode(path, env.Code); err != nil {
		return sehri.RawDay{}, err
	}
	day := toRawDay(env.Data)
	if day.Date == "" {
		day.Date = date.Format(sehri.DateLayout)
	}
	if err := day.Validate(); err != nil {
		return sehri.RawDay{}, fmt.Errorf("%s: %w", path, err)
	}
	return day, nil
}

// FetchCalendarMonth fetches /calendar for a gregorian month.
func (c *Client) FetchCalendarMonth(ctx context.Context, at sehri.Coordinates, year int, month time.Month, method sehri.Method) ([]sehri.RawDay, error) {
	q := c.query(at, method)
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(int(month)))

	var env envelope[[]apiDay]
	if err := c.get(ctx, "/calendar", q, &env); err != nil {
		return nil, err
	}
	return calendarDays("/calendar", env)
}

// FetchHijriMonth fetches /hijriCalendar/{year}/{month}.
func (c *Client) FetchHijriMonth(ctx context.Context, at sehri.Coordinates, hijriYear, hijriMonth int, method sehri.Method) ([]sehri.RawDay, error) {
	var env envelope[[]apiDay]
	path := fmt.Sprintf("/hijriCalendar/%d/%d", hijriYear, hijriMonth)
	if err := c.get(ctx, path, c.query(at, method), &env); err != nil {
		return nil, err
	}
	return calendarDays(path, env)
}

func (c *Client) query(at sehri.Coordinates, method sehri.Method) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
	q.Set("method", strconv.Itoa(method.ID))
	q.Set("school", strconv.Itoa(method.School))
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	c.logger.Debug("time source fetch", "path", path, "elapsed", time.Since(start))
	return nil
}

// StatusError reports a non-200 answer from the API.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("time source %s: status %d: %s", e.Path, e.Code, e.Body)
}

// checkCode rejects an envelope whose own code is not 200, even when the
// HTTP status was.
func checkCode(path string, code int) error {
	if code != http.StatusOK {
		return fmt.Errorf("%s: %w: envelope code %d", path, sehri.ErrMalformedPayload, code)
	}
	return nil
}

func calendarDays(path string, env envelope[[]apiDay]) ([]sehri.RawDay, error) {
	if err := checkCode(path, env.Code); err != nil {
		return nil, err
	}
	days := toRawDays(env.Data)
	if err := sehri.ValidateRawDays(days); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return days, nil
}

func toRawDays(days []apiDay) []sehri.RawDay {
	out := make([]sehri.RawDay, 0, len(days))
	for _, d := range days {
		out = append(out, toRawDay(d))
	}
	return out
}

func toRawDay(d apiDay) sehri.RawDay {
	raw := sehri.RawDay{
		Weekday: d.Date.Gregorian.Weekday.En,
		Timings: d.Timings,
	}
	if t, err := time.Parse(apiDateLayout, d.Date.Gregorian.Date); err == nil {
		raw.Date = t.Format(sehri.DateLayout)
	}
	if n, err := strconv.Atoi(d.Date.Hijri.Day); err == nil {
		raw.HijriDay = n
	}
	if raw.Timings == nil {
		raw.Timings = map[string]string{}
	}
	return raw
}

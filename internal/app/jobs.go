package app

import (
	"context"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata" // cron specs resolve their zone by name

	"github.com/go-co-op/gocron/v2"
)

const probeTimeout = 5 * time.Second

// connectivityChecker reports whether the network is reachable.
type connectivityChecker interface {
	Online(ctx context.Context) bool
}

// httpProbe treats any response below 500 from url as connectivity.
type httpProbe struct {
	url    string
	client *http.Client
}

func newHTTPProbe(url string) *httpProbe {
	return &httpProbe{url: url, client: &http.Client{Timeout: probeTimeout}}
}

func (p *httpProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// startJobs schedules the periodic refresh and, when configured, the
// connectivity probe. The caller shuts the scheduler down.
func (a *SehriApp) startJobs(ctx context.Context, probe connectivityChecker) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(a.cronLocation()))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.CronJob(a.cfg.Server.RefreshCron, false),
		gocron.NewTask(func() { a.refresh(ctx) }),
		gocron.WithName("refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("scheduling refresh %q: %w", a.cfg.Server.RefreshCron, err)
	}

	if probe != nil && a.cfg.Server.ConnectivityProbeSec > 0 {
		_, err = s.NewJob(
			gocron.DurationJob(time.Duration(a.cfg.Server.ConnectivityProbeSec)*time.Second),
			gocron.NewTask(func() { a.probeConnectivity(ctx, probe) }),
			gocron.WithName("connectivity"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.Shutdown()
			return nil, fmt.Errorf("scheduling connectivity probe: %w", err)
		}
	}

	s.Start()
	for _, j := range s.Jobs() {
		next, _ := j.NextRun()
		a.logger.Info("job scheduled", "job", j.Name(), "next_run", next)
	}
	return s, nil
}

// cronLocation returns a zone the cron parser can load by name. gocron
// prefixes every spec with CRON_TZ=<name>, which fails for fixed zones such as
// "BDT"; those map to the Etc/GMT zone of the same whole-hour offset.
func (a *SehriApp) cronLocation() *time.Location {
	if _, err := time.LoadLocation(a.loc.String()); err == nil {
		return a.loc
	}
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, a.loc).Zone()
	if offset%3600 == 0 {
		// Etc/GMT names invert the sign: UTC+6 is Etc/GMT-6.
		name := "Etc/GMT"
		if h := offset / 3600; h != 0 {
			name = fmt.Sprintf("Etc/GMT%+d", -h)
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	a.logger.Warn("timezone has no loadable name, cron jobs use the host zone", "timezone", a.loc.String())
	return time.Local
}

// refresh runs a scheduled sync cycle and waits for it to finish.
func (a *SehriApp) refresh(ctx context.Context) {
	_, done := a.orch.Refresh(ctx)
	select {
	case s := <-done:
		a.logger.Info("scheduled refresh finished", "status", s.Status, "location", s.Location.Source)
	case <-ctx.Done():
	}
}

// probeConnectivity feeds the probe result to the orchestrator, which starts
// a sync cycle when the network comes back.
func (a *SehriApp) probeConnectivity(ctx context.Context, probe connectivityChecker) {
	online := probe.Online(ctx)
	_, done, started := a.orch.SetOnline(ctx, online)
	if !started {
		return
	}
	select {
	case s := <-done:
		a.logger.Info("resync after reconnect finished", "status", s.Status)
	case <-ctx.Done():
	}
}

package aggregator

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
	"github.com/skylark-dev/weather-alerts/internal/provider"
)

type stubProvider struct {
	name   string
	alerts []alerts.Alert
	err    error
	calls  atomic.Int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, geo provider.Geography, lang string) ([]alerts.Alert, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.alerts, nil
}

// fakeCache is a TTL map driven by an injected clock so tests can expire
// entries without sleeping.
type fakeCache struct {
	clock   clockwork.Clock
	entries map[string]fakeEntry
}

type fakeEntry struct {
	value   any
	expires time.Time
}

func newFakeCache(clock clockwork.Clock) *fakeCache {
	return &fakeCache{clock: clock, entries: make(map[string]fakeEntry)}
}

func (c *fakeCache) Get(key string) (any, bool) {
	e, ok := c.entries[key]
	if !ok || c.clock.Now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *fakeCache) Set(key string, value any, ttl time.Duration) {
	c.entries[key] = fakeEntry{value: value, expires: c.clock.Now().Add(ttl)}
}

func mkAlert(source alerts.Source, event string, sev alerts.Severity, urg alerts.Urgency, end time.Time) alerts.Alert {
	start := end.Add(-6 * time.Hour)
	return alerts.Alert{
		ID:       alerts.MakeID(source, event, start, end),
		Source:   source,
		Event:    event,
		Severity: sev,
		Urgency:  urg,
		Areas:    []string{},
		StartsAt: start,
		EndsAt:   end,
		Headline: event,
	}
}

func TestAlertsByCoords_CacheHitWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	end := clock.Now().Add(4 * time.Hour)
	ow := &stubProvider{name: "openweather", alerts: []alerts.Alert{
		mkAlert(alerts.SourceOpenWeather, "Storm", alerts.SeveritySevere, alerts.UrgencyExpected, end),
	}}

	svc := New(Config{
		CoordProviders: []provider.Provider{ow},
		Cache:          newFakeCache(clock),
		Clock:          clock,
		TTL:            DefaultTTL,
	})

	first, err := svc.AlertsByCoords(context.Background(), 40.7128, -74.0060, "en")
	require.NoError(t, err)
	require.Len(t, first.Alerts, 1)
	assert.Equal(t, int64(1), ow.calls.Load())

	// Coordinates rounding to the same 2-decimal key hit the cache.
	second, err := svc.AlertsByCoords(context.Background(), 40.7131, -74.0062, "en")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ow.calls.Load())

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, a, b, "cached payload must be byte-identical")

	// A different language is a different key.
	_, err = svc.AlertsByCoords(context.Background(), 40.7128, -74.0060, "de")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ow.calls.Load())

	// Past the TTL the entry expires and the provider is consulted again.
	clock.Advance(DefaultTTL + time.Second)
	_, err = svc.AlertsByCoords(context.Background(), 40.7128, -74.0060, "en")
	require.NoError(t, err)
	assert.Equal(t, int64(3), ow.calls.Load())
}

func TestAlertsByCoords_ProviderOutage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ow := &stubProvider{name: "openweather", err: context.DeadlineExceeded}

	svc := New(Config{
		CoordProviders: []provider.Provider{ow},
		Cache:          newFakeCache(clock),
		Clock:          clock,
	})

	resp, err := svc.AlertsByCoords(context.Background(), 10, 20, "en")
	require.NoError(t, err, "provider outage must not surface as an error")
	assert.Equal(t, clock.Now().UTC(), resp.UpdatedAt)
	assert.Empty(t, resp.Alerts)
	assert.NotNil(t, resp.Alerts, "alerts must marshal as [], not null")
}

func TestMerge_LastProviderWins(t *testing.T) {
	end := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	shared := mkAlert(alerts.SourceOpenWeather, "Storm", alerts.SeverityModerate, alerts.UrgencyExpected, end)
	updated := shared
	updated.Description = "richer text from the second provider"
	updated.Severity = alerts.SeveritySevere

	merged := merge([]settled{
		{provider: "a", alerts: []alerts.Alert{shared}},
		{provider: "b", alerts: []alerts.Alert{updated}},
	})

	require.Len(t, merged, 1)
	assert.Equal(t, updated, merged[0])
}

func TestMerge_SortsByImportance(t *testing.T) {
	end := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	minor := mkAlert(alerts.SourceNWS, "Fog", alerts.SeverityMinor, alerts.UrgencyExpected, end)
	extreme := mkAlert(alerts.SourceNWS, "Tornado", alerts.SeverityExtreme, alerts.UrgencyExpected, end)
	moderate := mkAlert(alerts.SourceNWS, "Wind", alerts.SeverityModerate, alerts.UrgencyExpected, end)

	merged := merge([]settled{{provider: "nws", alerts: []alerts.Alert{minor, extreme, moderate}}})

	require.Len(t, merged, 3)
	assert.Equal(t, "Tornado", merged[0].Event)
	assert.Equal(t, "Wind", merged[1].Event)
	assert.Equal(t, "Fog", merged[2].Event)
}

func TestMerge_SoonerEndBreaksTies(t *testing.T) {
	soon := mkAlert(alerts.SourceNWS, "Heat A", alerts.SeverityExtreme, alerts.UrgencyImmediate,
		time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	late := mkAlert(alerts.SourceNWS, "Heat B", alerts.SeverityExtreme, alerts.UrgencyImmediate,
		time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))

	merged := merge([]settled{{provider: "nws", alerts: []alerts.Alert{late, soon}}})

	require.Len(t, merged, 2)
	assert.Equal(t, "Heat A", merged[0].Event)
}

func newCountryService(clock clockwork.Clock, nws, ec, ma *stubProvider) *Service {
	return New(Config{
		NWS:        nws,
		EnvCanada:  ec,
		Meteoalarm: ma,
		Cache:      newFakeCache(clock),
		Clock:      clock,
	})
}

func TestAlertsByCountry_RoutesUSToNWS(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	end := clock.Now().Add(2 * time.Hour)
	nws := &stubProvider{name: "nws", alerts: []alerts.Alert{
		mkAlert(alerts.SourceNWS, "Flood Warning", alerts.SeveritySevere, alerts.UrgencyImmediate, end),
	}}
	ec := &stubProvider{name: "envcanada"}
	ma := &stubProvider{name: "meteoalarm"}

	svc := newCountryService(clock, nws, ec, ma)

	resp, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "US", Lang: "en", Limit: 120})
	require.NoError(t, err)

	assert.Equal(t, int64(1), nws.calls.Load())
	assert.Zero(t, ec.calls.Load())
	assert.Zero(t, ma.calls.Load())
	assert.Equal(t, []string{"nws"}, resp.Meta.Providers)
	assert.False(t, resp.Meta.RegionSupported, "US is not covered by the regional aggregator")
	require.Len(t, resp.Alerts, 1)
}

func TestAlertsByCountry_RoutesCAToEnvCanada(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	nws := &stubProvider{name: "nws"}
	ec := &stubProvider{name: "envcanada"}
	ma := &stubProvider{name: "meteoalarm"}

	svc := newCountryService(clock, nws, ec, ma)

	resp, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "CA", Lang: "en", Limit: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ec.calls.Load())
	assert.Equal(t, []string{"envcanada"}, resp.Meta.Providers)
}

func TestAlertsByCountry_RoutesRegionalCode(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	nws := &stubProvider{name: "nws"}
	ec := &stubProvider{name: "envcanada"}
	ma := &stubProvider{name: "meteoalarm"}

	svc := newCountryService(clock, nws, ec, ma)

	resp, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "DE", Lang: "de", Limit: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ma.calls.Load())
	assert.Equal(t, []string{"meteoalarm"}, resp.Meta.Providers)
	assert.True(t, resp.Meta.RegionSupported)
}

func TestAlertsByCountry_UnsupportedCode(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	nws := &stubProvider{name: "nws"}
	ec := &stubProvider{name: "envcanada"}
	ma := &stubProvider{name: "meteoalarm"}

	svc := newCountryService(clock, nws, ec, ma)

	resp, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "XX", Lang: "en", Limit: 120})
	require.NoError(t, err, "unsupported region is not an error")

	assert.Empty(t, resp.Alerts)
	assert.NotNil(t, resp.Alerts)
	assert.Empty(t, resp.Meta.Providers)
	assert.False(t, resp.Meta.RegionSupported)
	assert.Zero(t, nws.calls.Load())
	assert.Zero(t, ec.calls.Load())
	assert.Zero(t, ma.calls.Load())
}

// Filters are not part of the cache key: the unfiltered merge is cached once
// and every retrieval applies the query's filters to a fresh copy.
func TestAlertsByCountry_FiltersApplyPostCache(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	end := clock.Now().Add(2 * time.Hour)

	extreme := mkAlert(alerts.SourceNWS, "Tornado", alerts.SeverityExtreme, alerts.UrgencyImmediate, end)
	extreme.Areas = []string{"Dallas County"}
	severe := mkAlert(alerts.SourceNWS, "Flood Warning", alerts.SeveritySevere, alerts.UrgencyExpected, end)
	severe.Areas = []string{"River Valley"}
	minor := mkAlert(alerts.SourceNWS, "Fog", alerts.SeverityMinor, alerts.UrgencyFuture, end)
	minor.Areas = []string{"Dallas County"}

	nws := &stubProvider{name: "nws", alerts: []alerts.Alert{extreme, severe, minor}}
	svc := newCountryService(clock, nws, &stubProvider{name: "envcanada"}, &stubProvider{name: "meteoalarm"})

	full, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "US", Lang: "en", Limit: 120})
	require.NoError(t, err)
	require.Len(t, full.Alerts, 3)
	assert.Equal(t, int64(1), nws.calls.Load())

	bySeverity, err := svc.AlertsByCountry(context.Background(),
		CountryQuery{Code: "US", Lang: "en", Limit: 120, MinSeverity: alerts.SeveritySevere})
	require.NoError(t, err)
	assert.Equal(t, int64(1), nws.calls.Load(), "filtered query must be served from cache")
	require.Len(t, bySeverity.Alerts, 2)

	byArea, err := svc.AlertsByCountry(context.Background(),
		CountryQuery{Code: "US", Lang: "en", Limit: 120, Area: "dallas"})
	require.NoError(t, err)
	require.Len(t, byArea.Alerts, 2)

	limited, err := svc.AlertsByCountry(context.Background(),
		CountryQuery{Code: "US", Lang: "en", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited.Alerts, 1)
	assert.Equal(t, "Tornado", limited.Alerts[0].Event, "limit keeps the highest-ranked alerts")

	// The cached payload itself is untouched by earlier filtered reads.
	again, err := svc.AlertsByCountry(context.Background(), CountryQuery{Code: "US", Lang: "en", Limit: 120})
	require.NoError(t, err)
	assert.Len(t, again.Alerts, 3)
	assert.Equal(t, int64(1), nws.calls.Load())
}

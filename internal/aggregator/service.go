package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/skylark-dev/weather-alerts/internal/alerts"
	"github.com/skylark-dev/weather-alerts/internal/cache"
	"github.com/skylark-dev/weather-alerts/internal/provider"
)

const DefaultTTL = 120 * time.Second

// Response is the payload for coordinate queries.
type Response struct {
	UpdatedAt time.Time      `json:"updatedAt"`
	Alerts    []alerts.Alert `json:"alerts"`
}

// Meta reports which providers were consulted and whether the regional feed
// aggregator covers the country.
type Meta struct {
	Providers       []string `json:"providers"`
	RegionSupported bool     `json:"regionSupported"`
}

// CountryResponse is the payload for country queries.
type CountryResponse struct {
	UpdatedAt time.Time      `json:"updatedAt"`
	Alerts    []alerts.Alert `json:"alerts"`
	Meta      Meta           `json:"meta"`
}

// CountryQuery is a validated country request. Limit, Area, and MinSeverity
// are post-filters: they are not part of the cache key and apply after cache
// retrieval, against the unfiltered merged payload.
type CountryQuery struct {
	Code        string
	Lang        string
	Limit       int
	Area        string
	MinSeverity alerts.Severity
}

// Config wires the aggregation service. Providers and the cache are injected
// so tests can use stubs and fake clocks.
type Config struct {
	CoordProviders []provider.Provider
	NWS            provider.Provider
	EnvCanada      provider.Provider
	Meteoalarm     provider.Provider
	RegionTable    func(code string) bool
	Cache          cache.Cache
	Clock          clockwork.Clock
	TTL            time.Duration
}

type Service struct {
	coordProviders []provider.Provider
	nws            provider.Provider
	envCanada      provider.Provider
	meteoalarm     provider.Provider
	regionTable    func(code string) bool
	cache          cache.Cache
	clock          clockwork.Clock
	ttl            time.Duration
}

func New(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RegionTable == nil {
		cfg.RegionTable = provider.MeteoalarmSupported
	}
	return &Service{
		coordProviders: cfg.CoordProviders,
		nws:            cfg.NWS,
		envCanada:      cfg.EnvCanada,
		meteoalarm:     cfg.Meteoalarm,
		regionTable:    cfg.RegionTable,
		cache:          cfg.Cache,
		clock:          cfg.Clock,
		ttl:            cfg.TTL,
	}
}

// AlertsByCoords aggregates all coordinate-capable providers for a rounded
// (lat, lon, lang) key. Within the TTL window repeated calls return the
// cached payload verbatim, with no upstream calls.
func (s *Service) AlertsByCoords(ctx context.Context, lat, lon float64, lang string) (Response, error) {
	key := coordsKey(lat, lon, lang)
	if v, ok := s.cache.Get(key); ok {
		if resp, ok := v.(Response); ok {
			return resp, nil
		}
	}

	results := settleAll(ctx, s.coordProviders, provider.Geography{Lat: lat, Lon: lon}, lang)
	resp := Response{
		UpdatedAt: s.clock.Now().UTC(),
		Alerts:    merge(results),
	}
	s.cache.Set(key, resp, s.ttl)
	return resp, nil
}

// AlertsByCountry routes a 2-letter code through the static provider table,
// caches the unfiltered merge keyed by (code, lang), and applies the query's
// post-filters to a fresh copy on every call.
func (s *Service) AlertsByCountry(ctx context.Context, q CountryQuery) (CountryResponse, error) {
	key := countryKey(q.Code, q.Lang)
	if v, ok := s.cache.Get(key); ok {
		if resp, ok := v.(CountryResponse); ok {
			return applyFilters(resp, q), nil
		}
	}

	providers, names, supported := s.route(q.Code)
	results := settleAll(ctx, providers, provider.Geography{Country: q.Code}, q.Lang)

	resp := CountryResponse{
		UpdatedAt: s.clock.Now().UTC(),
		Alerts:    merge(results),
		Meta: Meta{
			Providers:       names,
			RegionSupported: supported,
		},
	}
	s.cache.Set(key, resp, s.ttl)
	return applyFilters(resp, q), nil
}

// route is the static provider table: reserved codes go to their national
// adapter, everything else to the regional aggregator when its table covers
// the code. An unsupported code yields an empty provider set, not an error.
// RegionSupported always reflects the regional table, matching what the
// meta field historically reported.
func (s *Service) route(code string) ([]provider.Provider, []string, bool) {
	supported := s.regionTable(code)

	var chosen provider.Provider
	switch {
	case code == "US":
		chosen = s.nws
	case code == "CA":
		chosen = s.envCanada
	case supported:
		chosen = s.meteoalarm
	}
	if chosen == nil {
		return nil, []string{}, supported
	}
	return []provider.Provider{chosen}, []string{chosen.Name()}, supported
}

type settled struct {
	provider string
	alerts   []alerts.Alert
	err      error
}

// settleAll fetches from every provider concurrently and waits for all of
// them. Results are slot-indexed by the caller's provider order, so the merge
// is reproducible no matter which call completes first. A provider's failure
// never aborts its siblings; it is kept in the result for logging and
// contributes nothing to the merge.
func settleAll(ctx context.Context, providers []provider.Provider, geo provider.Geography, lang string) []settled {
	results := make([]settled, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			list, err := p.Fetch(ctx, geo, lang)
			results[i] = settled{provider: p.Name(), alerts: list, err: err}
		}(i, p)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			slog.Error("provider fetch failed", "provider", r.provider, "error", r.err)
		} else {
			slog.Debug("provider fetch ok", "provider", r.provider, "count", len(r.alerts))
		}
	}
	return results
}

// merge deduplicates by id with last-provider-wins semantics, then sorts
// descending by score (severity-major, urgency-minor, soonest-end tie-break).
func merge(results []settled) []alerts.Alert {
	out := make([]alerts.Alert, 0)
	index := make(map[string]int)

	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, a := range r.alerts {
			if i, ok := index[a.ID]; ok {
				out[i] = a
				continue
			}
			index[a.ID] = len(out)
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return alerts.Score(out[i]) > alerts.Score(out[j])
	})
	return out
}

// applyFilters narrows a cached payload per query. The cached value is never
// mutated: filters always run against a fresh slice.
func applyFilters(resp CountryResponse, q CountryQuery) CountryResponse {
	filtered := make([]alerts.Alert, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		if q.MinSeverity != "" && a.Severity.Rank() < q.MinSeverity.Rank() {
			continue
		}
		if q.Area != "" && !matchesArea(a, q.Area) {
			continue
		}
		filtered = append(filtered, a)
	}
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	resp.Alerts = filtered
	return resp
}

func matchesArea(a alerts.Alert, area string) bool {
	needle := strings.ToLower(area)
	for _, name := range a.Areas {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

func coordsKey(lat, lon float64, lang string) string {
	return fmt.Sprintf("alerts:%.2f,%.2f:%s", lat, lon, lang)
}

func countryKey(code, lang string) string {
	return fmt.Sprintf("alerts:country:%s:%s", code, lang)
}

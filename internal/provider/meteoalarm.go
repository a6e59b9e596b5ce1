package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
	"github.com/skylark-dev/weather-alerts/internal/feed"
)

// countrySlug maps ISO-2 codes to the region slugs used in the legacy
// Atom/RSS feed URLs.
var countrySlug = map[string]string{
	"AT": "austria",
	"BE": "belgium",
	"BA": "bosnia-herzegovina", // note: without "-and-"
	"BG": "bulgaria",
	"CH": "switzerland",
	"CY": "cyprus",
	"CZ": "czech-republic",
	"DE": "germany",
	"DK": "denmark",
	"EE": "estonia",
	"ES": "spain",
	"FI": "finland",
	"FR": "france",
	"GR": "greece",
	"HR": "croatia",
	"HU": "hungary",
	"IE": "ireland",
	"IL": "israel",
	"IS": "iceland",
	"IT": "italy",
	"LI": "liechtenstein",
	"LT": "lithuania",
	"LU": "luxembourg",
	"LV": "latvia",
	"MD": "moldova",
	"ME": "montenegro",
	"MK": "republic-of-north-macedonia",
	"MT": "malta",
	"NL": "netherlands",
	"NO": "norway",
	"PL": "poland",
	"PT": "portugal",
	"RO": "romania",
	"RS": "serbia",
	"SE": "sweden",
	"SI": "slovenia",
	"SK": "slovakia",
	"UA": "ukraine",
	"GB": "united-kingdom",
	"UK": "united-kingdom",
}

// MeteoalarmSupported reports whether a country code is covered by the
// regional feed aggregator.
func MeteoalarmSupported(code string) bool {
	_, ok := countrySlug[strings.ToUpper(code)]
	return ok
}

// Meteoalarm serves European countries from the regional feed aggregator.
// An unsupported country code is not an error: it yields an empty list with a
// warning. The fetch ladder is Atom with strict headers, Atom again with a
// relaxed Accept on 406/415, then the RSS endpoint.
type Meteoalarm struct {
	feeds    *feed.Client
	baseURL  string
	enricher *Enricher // nil when CAP enrichment is disabled
}

func NewMeteoalarm(feeds *feed.Client, baseURL string, enricher *Enricher) *Meteoalarm {
	return &Meteoalarm{feeds: feeds, baseURL: strings.TrimSuffix(baseURL, "/"), enricher: enricher}
}

func (p *Meteoalarm) Name() string {
	return string(alerts.SourceMeteoalarm)
}

func (p *Meteoalarm) Fetch(ctx context.Context, geo Geography, lang string) ([]alerts.Alert, error) {
	code := strings.ToUpper(geo.Country)
	slug, ok := countrySlug[code]
	if !ok {
		slog.Warn("meteoalarm: unsupported country code", "code", code)
		return []alerts.Alert{}, nil
	}

	atomURL := p.baseURL + "/meteoalarm-legacy-atom-" + slug
	rssURL := p.baseURL + "/meteoalarm-legacy-rss-" + slug

	body, status, err := p.feeds.GetXML(ctx, atomURL, lang, feed.AcceptAtom)
	if err != nil && (status == http.StatusNotAcceptable || status == http.StatusUnsupportedMediaType) {
		body, _, err = p.feeds.GetXML(ctx, atomURL, lang, feed.AcceptRelaxed)
	}
	if err != nil {
		body, _, err = p.feeds.GetXML(ctx, rssURL, lang, feed.AcceptRSS)
	}
	if err != nil {
		slog.Error("meteoalarm feed fetch failed", "code", code, "url", atomURL, "error", err)
		return []alerts.Alert{}, nil
	}

	entries, kind, err := feed.Parse(body, lang)
	if err != nil || kind == feed.KindUnknown {
		slog.Warn("meteoalarm: unparseable feed", "code", code, "error", err)
		return []alerts.Alert{}, nil
	}
	slog.Debug("meteoalarm feed parsed", "code", code, "shape", kind.String(), "entries", len(entries))

	now := p.feeds.Now()
	out := make([]alerts.Alert, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		a := e.ToAlert(alerts.SourceMeteoalarm, now)
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true

		if p.enricher != nil && e.CapLink != "" {
			if detail, ok := p.enricher.Lookup(e.CapLink); ok {
				if detail.Description != "" {
					a.Description = detail.Description
				}
				if detail.Instruction != "" {
					a.Instruction = detail.Instruction
				}
			} else {
				p.enricher.Request(e.CapLink, lang)
			}
		}
		out = append(out, a)
	}
	return out, nil
}

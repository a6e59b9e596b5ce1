package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/skylark-dev/weather-alerts/internal/alerts"
)

// OpenWeather fetches alerts from the One Call coordinate endpoint. The API
// key is required: a missing key is a configuration error surfaced at
// construction, never silently per-request.
type OpenWeather struct {
	http    *http.Client
	clock   clockwork.Clock
	baseURL string
	apiKey  string
}

func NewOpenWeather(baseURL, apiKey string, httpClient *http.Client, clock clockwork.Clock) (*OpenWeather, error) {
	if apiKey == "" {
		return nil, errors.New("openweather: API key is missing")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpenWeather{
		http:    httpClient,
		clock:   clock,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

func (p *OpenWeather) Name() string {
	return string(alerts.SourceOpenWeather)
}

type owResponse struct {
	Alerts []owAlert `json:"alerts"`
}

type owAlert struct {
	Event       string   `json:"event"`
	Severity    string   `json:"severity"`
	Urgency     string   `json:"urgency"`
	Certainty   string   `json:"certainty"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	Description string   `json:"description"`
	Instruction string   `json:"instruction"`
	Tags        []string `json:"tags"`
}

func (p *OpenWeather) Fetch(ctx context.Context, geo Geography, lang string) ([]alerts.Alert, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(geo.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(geo.Lon, 'f', -1, 64))
	params.Set("appid", p.apiKey)
	params.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	// Upstream rejections degrade to an empty contribution; only transport
	// failures bubble up as errors.
	if resp.StatusCode != http.StatusOK {
		slog.Error("openweather request rejected", "status", resp.StatusCode)
		return []alerts.Alert{}, nil
	}

	var data owResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	now := p.clock.Now().UTC()
	out := make([]alerts.Alert, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		event := a.Event
		if event == "" {
			event = "Weather Alert"
		}
		startsAt := now
		if a.Start != 0 {
			startsAt = time.Unix(a.Start, 0).UTC()
		}
		endsAt := now.Add(time.Hour)
		if a.End != 0 {
			endsAt = time.Unix(a.End, 0).UTC()
		}

		certainty := alerts.CertaintyLikely
		if a.Certainty != "" {
			certainty = alerts.MapCertainty(a.Certainty)
		}
		areas := a.Tags
		if areas == nil {
			areas = []string{}
		}

		out = append(out, alerts.Alert{
			ID:          alerts.MakeID(alerts.SourceOpenWeather, event, startsAt, endsAt),
			Source:      alerts.SourceOpenWeather,
			Event:       event,
			Severity:    alerts.MapSeverity(firstNonEmpty(a.Severity, a.Event)),
			Urgency:     alerts.MapUrgency(a.Urgency),
			Certainty:   certainty,
			Areas:       areas,
			StartsAt:    startsAt,
			EndsAt:      endsAt,
			Headline:    event,
			Description: alerts.StripHTML(a.Description),
			Instruction: alerts.StripHTML(a.Instruction),
		})
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

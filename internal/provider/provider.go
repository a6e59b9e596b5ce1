package provider

import (
	"context"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
)

// Geography is the query shape handed to adapters: coordinate-capable
// providers read Lat/Lon, country-capable ones read Country.
type Geography struct {
	Lat     float64
	Lon     float64
	Country string
}

// Provider is a single upstream alert source. Fetch returns an error only for
// transport-level failures; an upstream that answers with no usable alerts
// contributes an empty list.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, geo Geography, lang string) ([]alerts.Alert, error)
}

package provider

import (
	"context"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
	"github.com/skylark-dev/weather-alerts/internal/feed"
)

// NWS serves the United States from the national CAP Atom feed.
type NWS struct {
	feeds   *feed.Client
	feedURL string
}

func NewNWS(feeds *feed.Client, feedURL string) *NWS {
	return &NWS{feeds: feeds, feedURL: feedURL}
}

func (p *NWS) Name() string {
	return string(alerts.SourceNWS)
}

func (p *NWS) Fetch(ctx context.Context, _ Geography, lang string) ([]alerts.Alert, error) {
	return p.feeds.FetchAll(ctx, []string{p.feedURL}, lang, alerts.SourceNWS), nil
}

// EnvCanada serves Canada from the national CAP aggregate, which rolls up the
// provincial feeds into one document.
type EnvCanada struct {
	feeds   *feed.Client
	feedURL string
}

func NewEnvCanada(feeds *feed.Client, feedURL string) *EnvCanada {
	return &EnvCanada{feeds: feeds, feedURL: feedURL}
}

func (p *EnvCanada) Name() string {
	return string(alerts.SourceEnvCanada)
}

func (p *EnvCanada) Fetch(ctx context.Context, _ Geography, lang string) ([]alerts.Alert, error) {
	return p.feeds.FetchAll(ctx, []string{p.feedURL}, lang, alerts.SourceEnvCanada), nil
}

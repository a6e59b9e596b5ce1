package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/skylark-dev/weather-alerts/internal/alerts"
)

const (
	// AcceptAtom prefers Atom but tolerates generic XML; some feed servers
	// reply 406 when the Accept header is missing or too strict.
	AcceptAtom = "application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7"
	// AcceptRelaxed is the retry header after a content-negotiation failure.
	AcceptRelaxed = "application/xml,text/xml,*/*"
	// AcceptRSS prefers RSS, used when falling back to an RSS endpoint.
	AcceptRSS = "application/rss+xml,application/xml,text/xml,*/*"

	defaultUserAgent = "weather-alerts/1.0 (+https://github.com/skylark-dev/weather-alerts)"
	defaultTimeout   = 15 * time.Second
)

// Client fetches and normalizes XML alert feeds.
type Client struct {
	http      *http.Client
	userAgent string
	clock     clockwork.Clock
}

func NewClient(httpClient *http.Client, clock clockwork.Clock) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		http:      httpClient,
		userAgent: defaultUserAgent,
		clock:     clock,
	}
}

// Now exposes the client's time source so adapters share one clock.
func (c *Client) Now() time.Time {
	return c.clock.Now()
}

// GetXML issues a single GET with feed content-negotiation headers. The status
// code is returned alongside the error so callers can drive their own retry
// ladders (406/415 handling differs per provider).
func (c *Client) GetXML(ctx context.Context, url, lang, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", lang)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("error reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return body, resp.StatusCode, nil
}

// FetchDocument GETs one feed URL, retrying once with a relaxed Accept header
// on a non-success status.
func (c *Client) FetchDocument(ctx context.Context, url, lang string) ([]byte, error) {
	body, status, err := c.GetXML(ctx, url, lang, AcceptAtom)
	if err == nil {
		return body, nil
	}
	if status == 0 {
		return nil, err
	}
	body, _, err = c.GetXML(ctx, url, lang, AcceptRelaxed)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchAll fetches each URL, parses whatever shape comes back, and returns the
// converted alerts deduplicated by id. A failing or unparseable URL is logged
// and skipped; it never aborts the remaining URLs.
func (c *Client) FetchAll(ctx context.Context, urls []string, lang string, source alerts.Source) []alerts.Alert {
	out := make([]alerts.Alert, 0)
	seen := make(map[string]bool)

	for _, url := range urls {
		if url == "" {
			continue
		}
		body, err := c.FetchDocument(ctx, url, lang)
		if err != nil {
			slog.Warn("feed fetch failed", "url", url, "error", err)
			continue
		}
		entries, kind, err := Parse(body, lang)
		if err != nil {
			slog.Warn("feed parse failed", "url", url, "error", err)
			continue
		}
		if kind == KindUnknown {
			slog.Warn("unknown feed shape", "url", url)
			continue
		}
		now := c.clock.Now()
		for _, e := range entries {
			a := e.ToAlert(source, now)
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

package provider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
	"github.com/skylark-dev/weather-alerts/internal/feed"
	"github.com/skylark-dev/weather-alerts/internal/worker"
)

// Detail is the richer text a linked CAP document carries beyond what the
// feed entry itself provides.
type Detail struct {
	Description string
	Instruction string
}

type enrichJob struct {
	url  string
	lang string
}

// Enricher fetches linked CAP documents in the background and keeps their
// description/instruction text in memory. It never gates a response: lookups
// hit whatever has already been fetched, and requests for missing links are
// queued best-effort (dropped when the pool is saturated).
type Enricher struct {
	feeds *feed.Client
	pool  *worker.Pool

	mu       sync.RWMutex
	store    map[string]Detail
	inflight map[string]bool
}

func NewEnricher(feeds *feed.Client, workers, bufferSize int) *Enricher {
	e := &Enricher{
		feeds:    feeds,
		store:    make(map[string]Detail),
		inflight: make(map[string]bool),
	}
	e.pool = worker.NewPool(workers, bufferSize, e.process)
	return e
}

func (e *Enricher) Start(ctx context.Context) {
	e.pool.Start(ctx)
}

func (e *Enricher) Stop() {
	e.pool.Stop()
}

// Lookup returns richer text for a CAP link if it has already been fetched.
func (e *Enricher) Lookup(url string) (Detail, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.store[url]
	return d, ok
}

// Request queues a CAP link for background fetching. Duplicate and overflow
// requests are dropped.
func (e *Enricher) Request(url, lang string) {
	e.mu.Lock()
	if e.inflight[url] {
		e.mu.Unlock()
		return
	}
	e.inflight[url] = true
	e.mu.Unlock()

	if !e.pool.TrySubmit(enrichJob{url: url, lang: lang}) {
		e.mu.Lock()
		delete(e.inflight, url)
		e.mu.Unlock()
	}
}

func (e *Enricher) process(ctx context.Context, job worker.Job) error {
	j := job.(enrichJob)
	defer func() {
		e.mu.Lock()
		delete(e.inflight, j.url)
		e.mu.Unlock()
	}()

	body, err := e.feeds.FetchDocument(ctx, j.url, j.lang)
	if err != nil {
		slog.Debug("cap enrichment fetch failed", "url", j.url, "error", err)
		return err
	}
	entries, kind, err := feed.Parse(body, j.lang)
	if err != nil || kind != feed.KindCAP || len(entries) == 0 {
		slog.Debug("cap enrichment skipped", "url", j.url, "shape", kind.String())
		return err
	}

	detail := Detail{
		Description: alerts.StripHTML(entries[0].Summary),
		Instruction: alerts.StripHTML(entries[0].Instruction),
	}
	e.mu.Lock()
	e.store[j.url] = detail
	e.mu.Unlock()
	return nil
}

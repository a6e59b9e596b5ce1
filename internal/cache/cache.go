package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the response cache the aggregator is handed. It is an explicit
// dependency rather than package-level state so tests can swap in fakes.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// Memory is the production implementation, a TTL map with periodic sweep.
type Memory struct {
	c *gocache.Cache
}

func NewMemory(defaultTTL, sweepInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, sweepInterval)}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

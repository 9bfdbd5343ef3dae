package cache

import (
	"log/slog"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	data *gocache.Cache
}

// NewMemoryCache returns a session-scoped verdict cache. Entries never expire
// and are lost when the process exits.
func NewMemoryCache() Cache {
	return &memoryCache{
		data: gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *memoryCache) Get(iss string) (bool, bool) {
	v, found := c.data.Get(iss)
	if !found {
		slog.Debug("Cache miss", "issuer", iss)
		return false, false
	}

	slog.Debug("Cache hit", "issuer", iss)
	return v.(bool), true
}

func (c *memoryCache) Set(iss string, valid bool) {
	// Add fails when the issuer already has a verdict; the first one stands.
	if err := c.data.Add(iss, valid, gocache.NoExpiration); err != nil {
		slog.Debug("Verdict already cached", "issuer", iss)
		return
	}

	slog.Debug("Cached verdict", "issuer", iss, "valid", valid)
}

package cache

import (
	"fmt"

	"github.com/boogy/shc-warden/pkg/config"
)

// Cache holds signature verdicts keyed by issuer id. Implementations must be
// safe for concurrent use and keep the first verdict written for an issuer.
type Cache interface {
	Get(iss string) (valid bool, found bool)
	Set(iss string, valid bool)
}

// NewCache creates the verdict cache named by the configuration.
func NewCache(cfg *config.Config) (Cache, error) {
	if cfg == nil || cfg.Cache == nil {
		return NewMemoryCache(), nil
	}

	cacheType := cfg.Cache.Type
	if cacheType == "" {
		cacheType = "memory"
	}

	switch cacheType {
	case "memory":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}
}

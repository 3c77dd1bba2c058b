package cache

import (
	"fmt"

	"github.com/eivinasbutkus/behavenet/internal/config"
)

// Open constructs the store named by the configuration, rooted at dir.
func Open(cfg config.CacheConfig, dir string) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

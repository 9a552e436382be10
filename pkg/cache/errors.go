package cache

import "github.com/tokmz/pushgate/pkg/errors"

var (
	ErrCacheNotFound      = errors.New(2001, "cache key not found", 404)
	ErrCacheExpired       = errors.New(2002, "cache key expired", 404)
	ErrCacheConnection    = errors.New(2003, "cache connection failed")
	ErrCacheSerialization = errors.New(2004, "cache serialization failed")
	ErrCacheInvalidConfig = errors.New(2005, "cache invalid config")
	ErrCacheOperation     = errors.New(2006, "cache operation failed")
)

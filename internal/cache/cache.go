package cache

import (
	"fmt"

	"apphost-ota/config"
)

type Cache interface {
	Get(key string) string
	Set(key string, value string, ttl *int) error
	Delete(key string)
	Clear() error
}

type CacheType string

const (
	LocalCacheType CacheType = "local"
	RedisCacheType CacheType = "redis"
)

// New resolves the cache implementation from the configured cache mode.
func New(cfg config.Config) (Cache, error) {
	switch CacheType(cfg.CacheMode) {
	case RedisCacheType:
		return NewRedisCache(cfg.RedisHost, cfg.RedisPassword, cfg.RedisPort)
	case LocalCacheType, "":
		return NewLocalCache(), nil
	}
	return nil, fmt.Errorf("unknown cache mode: %s", cfg.CacheMode)
}

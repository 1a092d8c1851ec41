package store

import (
	"errors"
	"strings"

	"bella/server/internal/config"
)

const (
	EngineSQLite = "sqlite"
	EngineRedis  = "redis"
	EngineMemory = "memory"
)

func NewByEngine(cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(cfg.Path)
	case EngineRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix)
	case EngineMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unsupported store engine: " + cfg.Engine)
	}
}

package db

import "fmt"

type Config struct {
	Driver     string
	SQLitePath string
	Redis      RedisConfig
}

// Open builds the blob store selected by cfg.Driver.
func Open(cfg Config) (BlobStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return New(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

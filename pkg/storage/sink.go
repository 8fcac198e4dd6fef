package storage

import (
	"context"
	"fmt"
)

// NewSink builds the sink named by config.Driver
func NewSink(ctx context.Context, config Config) (LogSink, error) {
	switch config.Driver {
	case "", DriverMemory:
		return NewMemoryStorage(), nil
	case DriverRedis:
		return NewRedisStorage(ctx, config.Redis, config.Retention)
	case DriverFile:
		return NewFileStorage(config.File.Path, config.Retention)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", config.Driver)
	}
}

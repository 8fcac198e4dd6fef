package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultKeyPrefix namespaces search log keys in every sink
const DefaultKeyPrefix = "search_log:"

// DateLayout is the ISO-8601 layout used for LogRecord.Date
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrSinkClosed is returned by sinks used after Close
var ErrSinkClosed = errors.New("log sink is closed")

// LogRecord is the summary of one completed aggregation
type LogRecord struct {
	Keyword      string `json:"keyword"`
	Country      string `json:"country"`
	Language     string `json:"language"`
	ResultsCount int    `json:"results_count"`
	Date         string `json:"date"`
}

// NewLogRecord stamps a record with the given time in UTC
func NewLogRecord(keyword, country, language string, resultsCount int, at time.Time) LogRecord {
	return LogRecord{
		Keyword:      keyword,
		Country:      country,
		Language:     language,
		ResultsCount: resultsCount,
		Date:         at.UTC().Format(DateLayout),
	}
}

// LogSink stores search log records under time-ordered keys.
// GetMany returns nil at the position of every missing key.
type LogSink interface {
	Put(ctx context.Context, key string, record LogRecord) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	GetMany(ctx context.Context, keys []string) ([]*LogRecord, error)
	Close() error
}

// Config selects and configures a log sink
type Config struct {
	Driver    string        `mapstructure:"driver"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Retention time.Duration `mapstructure:"retention"`
	Redis     RedisConfig   `mapstructure:"redis"`
	File      FileConfig    `mapstructure:"file"`
}

// RedisConfig holds the Redis sink connection settings
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// FileConfig holds the JSON-lines sink location
type FileConfig struct {
	Path string `mapstructure:"path"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverFile   = "file"
)

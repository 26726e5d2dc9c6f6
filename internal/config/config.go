package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Export modes.
const (
	ModeFull   = "full"
	ModeRecent = "recent"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	Mode            string
	StartDate       time.Time
	ExportDir       string
	QueueSize       int
	WatchdogTimeout time.Duration

	StoreDriver     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoBatchSize  int
	SQLitePath      string

	S3Bucket   string
	AWSRegion  string
	S3Endpoint string

	// Export notifications are disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// The ops server is disabled when HTTPAddr is empty.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	mode := strings.ToLower(sharedcfg.EnvOrDefault("EXPORT_MODE", ModeRecent))
	if mode != ModeFull && mode != ModeRecent {
		return nil, fmt.Errorf("invalid EXPORT_MODE %q (allowed: full, recent)", mode)
	}

	startDate, err := time.Parse(dateLayout, sharedcfg.EnvOrDefault("EXPORT_START_DATE", "2015-06-29"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPORT_START_DATE: %w", err)
	}

	queueSize, err := parsePositiveInt("EXPORT_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	watchdogTimeout, err := parsePositiveDuration("WATCHDOG_TIMEOUT", "6h")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(sharedcfg.EnvOrDefault("STORE_DRIVER", DriverMongo))
	if driver != DriverMongo && driver != DriverSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (allowed: mongo, sqlite)", driver)
	}

	mongoBatchSize, err := parsePositiveInt("MONGO_BATCH_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	logFormat := strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json"))
	if logFormat != "json" && logFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", logFormat)
	}

	cfg := &Config{
		Mode:            mode,
		StartDate:       startDate,
		ExportDir:       sharedcfg.EnvOrDefault("EXPORT_DIR", "."),
		QueueSize:       queueSize,
		WatchdogTimeout: watchdogTimeout,

		StoreDriver:     driver,
		MongoURI:        sharedcfg.EnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   sharedcfg.EnvOrDefault("MONGO_DATABASE", "openaq"),
		MongoCollection: sharedcfg.EnvOrDefault("MONGO_COLLECTION", "measurements"),
		MongoBatchSize:  mongoBatchSize,
		SQLitePath:      sharedcfg.EnvOrDefault("SQLITE_PATH", "data/measurements.db"),

		S3Bucket:   sharedcfg.EnvOrDefault("S3_BUCKET", "openaq-data"),
		AWSRegion:  sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		S3Endpoint: sharedcfg.EnvOrDefault("S3_ENDPOINT", ""),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "measurement-exports"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       logFormat,
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// RangeStart returns the first reference date of the run. In recent mode that
// is yesterday, so the run exports the two most recent complete days.
func (c *Config) RangeStart(now time.Time) time.Time {
	if c.Mode == ModeRecent {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
	}
	return c.StartDate
}

// NotifyEnabled reports whether export notifications should be published.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

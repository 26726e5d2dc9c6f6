package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "test-exports"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeRecent, cfg.Mode)
	assert.Equal(t, time.Date(2015, 6, 29, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, ".", cfg.ExportDir)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, 6*time.Hour, cfg.WatchdogTimeout)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "openaq", cfg.MongoDatabase)
	assert.Equal(t, "measurements", cfg.MongoCollection)
	assert.Equal(t, 1000, cfg.MongoBatchSize)
	assert.Equal(t, "data/measurements.db", cfg.SQLitePath)
	assert.Equal(t, "openaq-data", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.S3Endpoint)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.NotifyEnabled())
	assert.Equal(t, "measurement-exports", cfg.KafkaTopic)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("EXPORT_MODE", "full")
	t.Setenv("EXPORT_START_DATE", "2020-03-01")
	t.Setenv("EXPORT_DIR", "/var/exports")
	t.Setenv("EXPORT_QUEUE_SIZE", "64")
	t.Setenv("WATCHDOG_TIMEOUT", "90m")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/m.db")
	t.Setenv("MONGO_BATCH_SIZE", "500")
	t.Setenv("S3_BUCKET", testBucket)
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "exports")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeFull, cfg.Mode)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, "/var/exports", cfg.ExportDir)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, 90*time.Minute, cfg.WatchdogTimeout)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/m.db", cfg.SQLitePath)
	assert.Equal(t, 500, cfg.MongoBatchSize)
	assert.Equal(t, testBucket, cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.NotifyEnabled())
	assert.Equal(t, "exports", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"EXPORT_MODE", "weekly"},
		{"EXPORT_START_DATE", "01/02/2020"},
		{"EXPORT_QUEUE_SIZE", "0"},
		{"EXPORT_QUEUE_SIZE", "many"},
		{"WATCHDOG_TIMEOUT", "not-a-duration"},
		{"WATCHDOG_TIMEOUT", "-1s"},
		{"SHUTDOWN_TIMEOUT", "bad"},
		{"STORE_DRIVER", "postgres"},
		{"MONGO_BATCH_SIZE", "-5"},
		{"LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_RangeStart(t *testing.T) {
	now := time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC)

	t.Run("recent starts yesterday", func(t *testing.T) {
		cfg := &Config{Mode: ModeRecent}
		assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), cfg.RangeStart(now))
	})

	t.Run("full starts at the configured date", func(t *testing.T) {
		start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
		cfg := &Config{Mode: ModeFull, StartDate: start}
		assert.Equal(t, start, cfg.RangeStart(now))
	})
}

func TestLoad_KafkaBrokersSkipBlankEntries(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, b:9092 ,,c:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092", "c:9092"}, cfg.KafkaBrokers)
}

package pipeline

import (
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/aq-export-service/internal/domain"
)

// ProgressInterval is how many records pass between progress log lines.
const ProgressInterval = 10_000

// RecordTransformer flattens raw records and counts them for progress logging.
// The count is process-wide and only ever grows.
type RecordTransformer struct {
	logger    *slog.Logger
	processed atomic.Int64
}

// NewTransformer creates a RecordTransformer.
func NewTransformer(logger *slog.Logger) *RecordTransformer {
	return &RecordTransformer{logger: logger}
}

// Transform flattens one record. It never drops or reorders records.
func (t *RecordTransformer) Transform(raw domain.RawRecord) domain.FlatRecord {
	if n := t.processed.Add(1); n%ProgressInterval == 0 {
		t.logger.Info("records processed", "count", n)
	}
	return raw.Flatten()
}

// Processed returns the number of records transformed so far.
func (t *RecordTransformer) Processed() int64 {
	return t.processed.Load()
}

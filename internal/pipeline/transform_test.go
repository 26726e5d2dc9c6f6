package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/aq-export-service/internal/domain"
)

func TestRecordTransformer_Transform(t *testing.T) {
	tfm := NewTransformer(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	raw := domain.RawRecord{
		Location:    "Station",
		Date:        domain.RecordDate{UTC: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Local: "2024-01-02T01:00:00+01:00"},
		Coordinates: &domain.Coordinates{Latitude: 1.5, Longitude: -2.25},
	}

	flat := tfm.Transform(raw)

	assert.Equal(t, raw.Flatten(), flat)
	assert.Equal(t, int64(1), tfm.Processed())
}

func TestRecordTransformer_LogsProgressEveryInterval(t *testing.T) {
	var logs bytes.Buffer
	tfm := NewTransformer(slog.New(slog.NewTextHandler(&logs, nil)))

	for range 2*ProgressInterval + 5 {
		tfm.Transform(domain.RawRecord{})
	}

	assert.Equal(t, int64(2*ProgressInterval+5), tfm.Processed())
	assert.Equal(t, 2, strings.Count(logs.String(), "records processed"))
	assert.Contains(t, logs.String(), "count=20000")
}

package pipeline_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aq-export-service/internal/domain"
	"github.com/couchcryptid/aq-export-service/internal/observability"
	"github.com/couchcryptid/aq-export-service/internal/pipeline"
)

// --- fakes ---

type sliceSource struct {
	records []domain.RawRecord
	failAt  int // yield an error after this many records; -1 disables
	err     error
	windows []domain.DayWindow
}

func newSliceSource(records ...domain.RawRecord) *sliceSource {
	return &sliceSource{records: records, failAt: -1}
}

func (s *sliceSource) Stream(ctx context.Context, window domain.DayWindow) iter.Seq2[domain.RawRecord, error] {
	s.windows = append(s.windows, window)
	return func(yield func(domain.RawRecord, error) bool) {
		for i, rec := range s.records {
			if i == s.failAt {
				yield(domain.RawRecord{}, s.err)
				return
			}
			if ctx.Err() != nil {
				yield(domain.RawRecord{}, ctx.Err())
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

type fakeUploader struct {
	err     error
	calls   int
	path    string
	key     string
	content []byte
}

func (u *fakeUploader) Upload(_ context.Context, path, key string) (int64, error) {
	u.calls++
	u.path, u.key = path, key
	data, readErr := os.ReadFile(path)
	_ = os.Remove(path)
	if readErr != nil {
		return 0, readErr
	}
	u.content = data
	if u.err != nil {
		return 0, u.err
	}
	return int64(len(data)), nil
}

type recordingNotifier struct {
	err     error
	results []domain.TaskResult
}

func (n *recordingNotifier) Notify(_ context.Context, result domain.TaskResult) error {
	n.results = append(n.results, result)
	return n.err
}

// --- helpers ---

var refDate = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeRecord(i int) domain.RawRecord {
	return domain.RawRecord{
		Location: fmt.Sprintf("Station %d", i),
		City:     "Hanoi",
		Country:  "VN",
		Date: domain.RecordDate{
			UTC:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second),
			Local: "2024-01-02T07:00:00+07:00",
		},
		Parameter:   "pm25",
		Value:       float64(i) + 0.5,
		Unit:        "µg/m³",
		Coordinates: &domain.Coordinates{Latitude: 21.0218 + float64(i)/1000, Longitude: 105.819 - float64(i)/3},
	}
}

func makeRecords(n int) []domain.RawRecord {
	out := make([]domain.RawRecord, n)
	for i := range out {
		out[i] = makeRecord(i)
	}
	return out
}

func newExporter(t *testing.T, src pipeline.RecordSource, up pipeline.Uploader, n pipeline.Notifier) (*pipeline.Exporter, string, *observability.Metrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := observability.NewMetricsForTesting()
	e := pipeline.New(src, up, n, discardLogger(), metrics, pipeline.Options{Dir: dir, QueueSize: 4})
	return e, dir, metrics
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no day file should remain on disk")
}

// --- tests ---

func TestExporter_ExportDay_HappyPath(t *testing.T) {
	src := newSliceSource(makeRecords(3)...)
	up := &fakeUploader{}
	e, dir, metrics := newExporter(t, src, up, nil)

	result := e.ExportDay(context.Background(), refDate)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "2024-01-02", result.Day)
	assert.Equal(t, "2024-01-02.csv", result.Key)
	assert.Equal(t, int64(3), result.Records)
	assert.Equal(t, int64(len(up.content)), result.Bytes)

	require.Len(t, src.windows, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), src.windows[0].From)
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC), src.windows[0].To)

	assert.Equal(t, 1, up.calls)
	assert.Equal(t, filepath.Join(dir, "2024-01-02.csv"), up.path)
	assert.Equal(t, "2024-01-02.csv", up.key)

	rows := parseCSV(t, up.content)
	require.Len(t, rows, 4)
	assert.Equal(t, domain.Columns, rows[0])
	assert.Equal(t, "Station 0", rows[1][0])
	assert.Equal(t, "Station 2", rows[3][0])

	assertDirEmpty(t, dir)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Days.WithLabelValues("succeeded")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.RecordsExported), 0)
}

func TestExporter_ExportDay_NoData(t *testing.T) {
	up := &fakeUploader{}
	e, dir, metrics := newExporter(t, newSliceSource(), up, nil)

	result := e.ExportDay(context.Background(), refDate)

	assert.Equal(t, domain.OutcomeNoData, result.Outcome)
	require.NoError(t, result.Err)
	assert.False(t, result.Failed())
	assert.Zero(t, up.calls, "no upload for an empty day")
	assertDirEmpty(t, dir)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Days.WithLabelValues("no_data")), 0)
}

func TestExporter_ExportDay_MidStreamStoreError(t *testing.T) {
	src := newSliceSource(makeRecords(5)...)
	src.failAt = 3
	src.err = errors.New("connection reset by peer")
	up := &fakeUploader{}
	e, dir, _ := newExporter(t, src, up, nil)

	result := e.ExportDay(context.Background(), refDate)

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	kind, ok := domain.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, domain.KindStoreQuery, kind)
	assert.ErrorIs(t, result.Err, src.err)
	assert.Zero(t, up.calls, "nothing is uploaded after a store error")
	assertDirEmpty(t, dir)
}

func TestExporter_ExportDay_EncodingError(t *testing.T) {
	records := makeRecords(3)
	records[1].Value = math.NaN()
	up := &fakeUploader{}
	e, dir, _ := newExporter(t, newSliceSource(records...), up, nil)

	result := e.ExportDay(context.Background(), refDate)

	kind, ok := domain.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, domain.KindEncoding, kind)
	assert.ErrorIs(t, result.Err, pipeline.ErrMalformedRecord)
	assert.Zero(t, up.calls)
	assertDirEmpty(t, dir)
}

func TestExporter_ExportDay_FileIOError(t *testing.T) {
	up := &fakeUploader{}
	metrics := observability.NewMetricsForTesting()
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	e := pipeline.New(newSliceSource(makeRecords(2)...), up, nil, discardLogger(), metrics, pipeline.Options{Dir: missing, QueueSize: 1})

	result := e.ExportDay(context.Background(), refDate)

	kind, ok := domain.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, domain.KindFileIO, kind)
	assert.Zero(t, up.calls)
}

func TestExporter_ExportDay_UploadErrorStillCleansUp(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	notifier := &recordingNotifier{}
	e, dir, metrics := newExporter(t, newSliceSource(makeRecords(2)...), up, notifier)

	result := e.ExportDay(context.Background(), refDate)

	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	kind, ok := domain.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUpload, kind)
	assert.Equal(t, 1, up.calls)
	assertDirEmpty(t, dir)
	assert.Empty(t, notifier.results, "failed days are not announced")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Days.WithLabelValues("failed")), 0)
}

func TestExporter_ExportDay_Notifies(t *testing.T) {
	notifier := &recordingNotifier{}
	e, _, _ := newExporter(t, newSliceSource(makeRecords(2)...), &fakeUploader{}, notifier)

	result := e.ExportDay(context.Background(), refDate)

	require.Len(t, notifier.results, 1)
	assert.Equal(t, "2024-01-02.csv", notifier.results[0].Key)
	assert.Equal(t, result.Records, notifier.results[0].Records)
}

func TestExporter_ExportDay_NotifyErrorDoesNotFailDay(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker unavailable")}
	e, _, metrics := newExporter(t, newSliceSource(makeRecords(1)...), &fakeUploader{}, notifier)

	result := e.ExportDay(context.Background(), refDate)

	assert.Equal(t, domain.OutcomeSucceeded, result.Outcome)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotifyErrors), 0)
}

func TestExporter_ExportDay_CoordinatesRoundTrip(t *testing.T) {
	records := makeRecords(50)
	up := &fakeUploader{}
	e, _, _ := newExporter(t, newSliceSource(records...), up, nil)

	result := e.ExportDay(context.Background(), refDate)
	require.NoError(t, result.Err)

	rows := parseCSV(t, up.content)[1:]
	require.Len(t, rows, len(records))
	for i, row := range rows {
		lat, err := strconv.ParseFloat(row[8], 64)
		require.NoError(t, err)
		lon, err := strconv.ParseFloat(row[9], 64)
		require.NoError(t, err)
		assert.Equal(t, records[i].Coordinates.Latitude, lat)
		assert.Equal(t, records[i].Coordinates.Longitude, lon)
	}
}

func TestExporter_ExportDay_PreservesOrderThroughSmallQueue(t *testing.T) {
	records := makeRecords(25_000)
	up := &fakeUploader{}
	metrics := observability.NewMetricsForTesting()
	dir := t.TempDir()
	e := pipeline.New(newSliceSource(records...), up, nil, discardLogger(), metrics, pipeline.Options{Dir: dir, QueueSize: 1})

	result := e.ExportDay(context.Background(), refDate)
	require.NoError(t, result.Err)
	assert.Equal(t, int64(len(records)), result.Records)

	rows := parseCSV(t, up.content)[1:]
	require.Len(t, rows, len(records))
	for i := range rows {
		require.Equal(t, records[i].Location, rows[i][0])
	}
}

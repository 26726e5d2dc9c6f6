package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/aq-export-service/internal/domain"
	"github.com/couchcryptid/aq-export-service/internal/observability"
)

// RecordSource streams the raw records whose UTC timestamp falls inside a window.
// The sequence is lazy: the store is read only as fast as the caller pulls.
type RecordSource interface {
	Stream(ctx context.Context, window domain.DayWindow) iter.Seq2[domain.RawRecord, error]
}

// Uploader puts a completed local file into object storage under key and
// returns the number of bytes sent. Implementations must remove the local file
// before returning, whether or not the upload succeeded.
type Uploader interface {
	Upload(ctx context.Context, path, key string) (int64, error)
}

// Notifier announces a successfully exported day.
type Notifier interface {
	Notify(ctx context.Context, result domain.TaskResult) error
}

// Options tune the per-day pipeline.
type Options struct {
	// Dir is where day files are written before upload.
	Dir string
	// QueueSize bounds the records buffered between the store reader and the
	// file writer.
	QueueSize int
}

// Exporter runs the query-transform-encode-write-upload chain for one day.
type Exporter struct {
	source      RecordSource
	transformer *RecordTransformer
	uploader    Uploader
	notifier    Notifier
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options
}

// New creates an Exporter. notifier may be nil.
func New(source RecordSource, uploader Uploader, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Exporter {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	return &Exporter{
		source:      source,
		transformer: NewTransformer(logger),
		uploader:    uploader,
		notifier:    notifier,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// ExportDay exports the day before ref and reports a terminal result.
func (e *Exporter) ExportDay(ctx context.Context, ref time.Time) domain.TaskResult {
	start := time.Now()
	window := domain.WindowFor(ref)
	logger := e.logger.With("day", window.Name())
	logger.Info("day export started", "from", window.From, "to", window.To)

	result := e.exportWindow(ctx, window, logger)
	result.Duration = time.Since(start)

	e.metrics.Days.WithLabelValues(string(result.Outcome)).Inc()
	e.metrics.DayDuration.Observe(result.Duration.Seconds())

	switch result.Outcome {
	case domain.OutcomeFailed:
		kind, _ := domain.KindOf(result.Err)
		logger.Error("day export failed",
			"stage", kind.Stage(),
			"kind", kind,
			"records", result.Records,
			"error", result.Err,
		)
	case domain.OutcomeNoData:
		logger.Info("no records for day, skipping upload")
	default:
		logger.Info("day export complete",
			"key", result.Key,
			"records", result.Records,
			"bytes", result.Bytes,
			"duration", result.Duration,
		)
	}
	return result
}

func (e *Exporter) exportWindow(ctx context.Context, window domain.DayWindow, logger *slog.Logger) domain.TaskResult {
	day := window.Name()
	result := domain.TaskResult{Day: day}

	path, records, err := e.writeDay(ctx, window, logger)
	result.Records = records
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		return result
	}
	if path == "" {
		result.Outcome = domain.OutcomeNoData
		return result
	}
	e.metrics.RecordsExported.Add(float64(records))

	key := window.FileName()
	logger.Info("day file written, uploading", "path", path, "key", key, "records", records)
	n, err := e.uploader.Upload(ctx, path, key)
	if err != nil {
		result.Outcome = domain.OutcomeFailed
		result.Err = domain.NewStageError(domain.KindUpload, day, err)
		return result
	}
	e.metrics.BytesUploaded.Add(float64(n))

	result.Outcome = domain.OutcomeSucceeded
	result.Key = key
	result.Bytes = n

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, result); err != nil {
			e.metrics.NotifyErrors.Inc()
			logger.Warn("export notification failed", "key", key, "error", err)
		}
	}
	return result
}

// writeDay streams the window into a local file. It returns an empty path when
// the window holds no records, in which case no file was ever created. On error
// any partial file has been removed.
func (e *Exporter) writeDay(ctx context.Context, window domain.DayWindow, logger *slog.Logger) (string, int64, error) {
	day := window.Name()
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan domain.RawRecord, e.opts.QueueSize)

	g.Go(func() error {
		defer close(queue)
		for rec, err := range e.source.Stream(gctx, window) {
			if err != nil {
				return domain.NewStageError(domain.KindStoreQuery, day, err)
			}
			select {
			case queue <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var out dayFile
	g.Go(func() error {
		return e.drain(gctx, queue, window, &out)
	})

	if err := g.Wait(); err != nil {
		if out.sink != nil {
			if abortErr := out.sink.Abort(); abortErr != nil {
				logger.Warn("remove partial day file failed", "path", out.sink.Path(), "error", abortErr)
			}
		}
		return "", out.records, domain.NewStageError(domain.KindStoreQuery, day, err)
	}
	if out.sink == nil {
		return "", 0, nil
	}
	if err := out.sink.Commit(); err != nil {
		return "", out.records, domain.NewStageError(domain.KindFileIO, day, err)
	}
	logger.Debug("day file committed",
		"path", out.sink.Path(),
		"bytes", out.sink.Written(),
		"processed_total", e.transformer.Processed(),
	)
	return out.sink.Path(), out.records, nil
}

// dayFile is the consumer's view of the file being written.
type dayFile struct {
	sink    *FileSink
	enc     *CSVEncoder
	records int64
}

// drain encodes queued records into a lazily created day file until the queue
// closes. It stops at the next record once ctx is canceled, so records still
// queued behind a failed producer are not encoded.
func (e *Exporter) drain(ctx context.Context, queue <-chan domain.RawRecord, window domain.DayWindow, out *dayFile) error {
	day := window.Name()
	for raw := range queue {
		if err := ctx.Err(); err != nil {
			return err
		}
		if out.sink == nil {
			s, err := CreateFileSink(e.opts.Dir, window.FileName())
			if err != nil {
				return domain.NewStageError(domain.KindFileIO, day, err)
			}
			out.sink = s
			out.enc = NewCSVEncoder(s)
			if err := out.enc.WriteHeader(); err != nil {
				return domain.NewStageError(domain.KindFileIO, day, err)
			}
		}
		if err := out.enc.Encode(e.transformer.Transform(raw)); err != nil {
			if errors.Is(err, ErrMalformedRecord) {
				return domain.NewStageError(domain.KindEncoding, day, err)
			}
			return domain.NewStageError(domain.KindFileIO, day, err)
		}
		out.records++
	}
	if out.enc != nil {
		if err := out.enc.Flush(); err != nil {
			return domain.NewStageError(domain.KindFileIO, day, err)
		}
	}
	return nil
}

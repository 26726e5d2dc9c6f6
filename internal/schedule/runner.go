// Package schedule enumerates the days of an export run and drives them one
// at a time under a watchdog.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aq-export-service/internal/domain"
	"github.com/couchcryptid/aq-export-service/internal/observability"
	"github.com/couchcryptid/aq-export-service/internal/watchdog"
)

// DayExporter exports the day before a reference date.
type DayExporter interface {
	ExportDay(ctx context.Context, ref time.Time) domain.TaskResult
}

// Options configure a Runner.
type Options struct {
	RunID           string
	WatchdogTimeout time.Duration
	// OnTimeout is called with a TimeoutError when the watchdog fires. The
	// run is not stopped by the Runner itself.
	OnTimeout func(error)
}

// Summary totals the outcome of a run.
type Summary struct {
	Days      int
	Succeeded int
	NoData    int
	Records   int64
	Bytes     int64
	Duration  time.Duration
	// Failed is the task that stopped the run, nil if none did.
	Failed *domain.TaskResult
}

// Runner executes day tasks sequentially and stops at the first failure.
type Runner struct {
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options

	mu       sync.RWMutex
	watchdog *watchdog.Watchdog
	started  bool
	status   domain.RunStatus
}

// NewRunner creates a Runner. A nil OnTimeout only records the timeout.
func NewRunner(clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Runner {
	if opts.OnTimeout == nil {
		opts.OnTimeout = func(error) {}
	}
	return &Runner{
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		status:  domain.RunStatus{RunID: opts.RunID},
	}
}

// ArmWatchdog starts the run's watchdog. Call it at process start so that
// connecting to the store and object storage counts against the timeout. Run
// arms the watchdog itself if it is not armed yet. Repeated calls are no-ops.
func (r *Runner) ArmWatchdog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchdog != nil {
		return
	}
	r.watchdog = watchdog.Arm(r.clock, r.opts.WatchdogTimeout, r.expire)
	r.logger.Info("watchdog armed", "timeout", r.watchdog.Timeout())
}

func (r *Runner) disarmWatchdog() {
	r.mu.RLock()
	wd := r.watchdog
	r.mu.RUnlock()
	if wd == nil {
		return
	}
	if !wd.Disarm() && wd.Fired() {
		r.logger.Warn("run finished after the watchdog fired")
	}
}

// Days returns the UTC midnight of every calendar day in [start, now), ascending.
func Days(start, now time.Time) []time.Time {
	var days []time.Time
	for d := domain.StartOfDay(start); d.Before(now); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Run exports every day from start up to the current time. It returns the
// error of the first failed task, after which no further task is started.
func (r *Runner) Run(ctx context.Context, exporter DayExporter, start time.Time) (Summary, error) {
	r.ArmWatchdog()
	defer r.disarmWatchdog()

	began := r.clock.Now()
	days := Days(start, began)

	r.begin(began, len(days))
	r.metrics.RunRunning.Set(1)
	defer r.metrics.RunRunning.Set(0)

	r.logger.Info("export run started",
		"start", start.Format(domain.DayLayout),
		"days", len(days),
		"watchdog_timeout", r.opts.WatchdogTimeout,
	)

	var sum Summary
	for _, ref := range days {
		r.setCurrent(domain.WindowFor(ref).Name())

		result := exporter.ExportDay(ctx, ref)
		sum.Days++
		sum.Records += result.Records
		sum.Bytes += result.Bytes
		r.record(result)

		if result.Failed() {
			sum.Failed = &result
			break
		}
		if result.Outcome == domain.OutcomeNoData {
			sum.NoData++
		} else {
			sum.Succeeded++
		}
	}
	sum.Duration = r.clock.Since(began)
	r.finish()

	if sum.Failed != nil {
		err := sum.Failed.Err
		if err == nil {
			err = errors.New("day export failed")
		}
		r.logger.Error("export run failed",
			"failed_day", sum.Failed.Day,
			"days_attempted", sum.Days,
			"days_remaining", len(days)-sum.Days,
			"error", err,
		)
		return sum, err
	}

	r.logger.Info("export run complete",
		"days", sum.Days,
		"succeeded", sum.Succeeded,
		"no_data", sum.NoData,
		"records", sum.Records,
		"bytes", sum.Bytes,
		"duration", sum.Duration,
	)
	return sum, nil
}

// CheckReadiness reports ready once a run has begun.
func (r *Runner) CheckReadiness(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.started {
		return errors.New("export run not started")
	}
	return nil
}

// Status returns a snapshot of the run's progress.
func (r *Runner) Status() domain.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) expire(cause error) {
	err := domain.NewStageError(domain.KindTimeout, "",
		fmt.Errorf("run did not finish within %s: %w", r.opts.WatchdogTimeout, cause))

	r.mu.Lock()
	r.status.Error = err.Error()
	day := r.status.CurrentDay
	r.mu.Unlock()

	r.logger.Error("watchdog fired", "in_flight_day", day, "error", err)
	r.opts.OnTimeout(err)
}

func (r *Runner) begin(at time.Time, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.status.Started = at
	r.status.Running = true
	r.status.DaysTotal = total
}

func (r *Runner) setCurrent(day string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.CurrentDay = day
}

func (r *Runner) record(result domain.TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.DaysDone++
	r.status.Records += result.Records
	r.status.Bytes += result.Bytes
	if result.Failed() {
		r.status.Failed = result.Day
		if result.Err != nil {
			r.status.Error = result.Err.Error()
		}
	}
}

func (r *Runner) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.CurrentDay = ""
	r.status.Finished = r.clock.Now()
}

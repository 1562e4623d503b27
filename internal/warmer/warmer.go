package warmer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/ihsan/pkg/cache"
	"github.com/dmitrymomot/ihsan/pkg/logger"
)

var (
	// ErrInvalidSchedule is returned by New when the cron expression does not parse.
	ErrInvalidSchedule = errors.New("warmer: invalid cron schedule")

	// ErrNoEntries is returned by New when no entry source is given.
	ErrNoEntries = errors.New("warmer: no entry source")
)

// EntrySource returns the entries to warm. It is called on every run so the
// set can change between runs.
type EntrySource func() []cache.WarmEntry

// Option configures a Warmer.
type Option func(*Warmer)

// WithSchedule runs warming on a five-field cron spec or descriptor such as
// "@hourly". Without it, warming only runs on Start.
func WithSchedule(spec string) Option {
	return func(w *Warmer) {
		w.schedule = spec
	}
}

// WithTimeout bounds each run. Default: 1m.
func WithTimeout(d time.Duration) Option {
	return func(w *Warmer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the logger run summaries are written to.
func WithLogger(log *slog.Logger) Option {
	return func(w *Warmer) {
		if log != nil {
			w.logger = log
		}
	}
}

// Warmer preloads cache entries at startup and, optionally, on a schedule.
// Scheduled runs that would overlap a run in progress are skipped.
type Warmer struct {
	svc      *cache.Service
	source   EntrySource
	logger   *slog.Logger
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	mu       sync.Mutex
	runs     int
}

// New creates a Warmer. The schedule is validated here.
func New(svc *cache.Service, source EntrySource, opts ...Option) (*Warmer, error) {
	if source == nil {
		return nil, ErrNoEntries
	}

	w := &Warmer{
		svc:     svc,
		source:  source,
		logger:  logger.NewNope(),
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.schedule != "" {
		cl := cronLogger{log: w.logger}
		w.cron = cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		)
		if _, err := w.cron.AddFunc(w.schedule, func() { w.RunOnce(context.Background()) }); err != nil {
			return nil, errors.Join(ErrInvalidSchedule, err)
		}
	}

	return w, nil
}

// RunOnce warms every entry from the source and logs a summary.
func (w *Warmer) RunOnce(ctx context.Context) cache.WarmReport {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	report := w.svc.Warm(ctx, w.source()...)

	w.mu.Lock()
	w.runs++
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "cache warming finished",
		slog.Int("warmed", len(report.Warmed)),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("duration", time.Since(start)),
	)
	return report
}

// Runs returns how many warming runs have completed.
func (w *Warmer) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Start warms once and starts the schedule, if any. It has the startup hook
// signature.
func (w *Warmer) Start(ctx context.Context) error {
	w.RunOnce(ctx)
	if w.cron != nil {
		w.cron.Start()
	}
	return nil
}

// Stop halts the schedule and waits for a run in progress, up to ctx's
// deadline. It has the shutdown hook signature.
func (w *Warmer) Stop(ctx context.Context) error {
	if w.cron == nil {
		return nil
	}
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}

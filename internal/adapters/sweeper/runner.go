// Package sweeper periodically ends sessions whose token has expired.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule checks the session twice a minute.
const DefaultSchedule = "@every 30s"

// Expirer is implemented by service.SessionStore.
type Expirer interface {
	ExpireIfStale(ctx context.Context) (bool, error)
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Sessions Expirer
	// Schedule is a standard cron expression or descriptor such as "@every 1m".
	Schedule string
	Logger   *slog.Logger
}

// Runner runs the expiry sweep on a cron schedule.
type Runner struct {
	sessions Expirer
	schedule cron.Schedule
	spec     string
	logger   *slog.Logger
}

// NewRunner validates the schedule and builds a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	spec := strings.TrimSpace(opts.Schedule)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Runner{
		sessions: opts.Sessions,
		schedule: sched,
		spec:     spec,
		logger:   opts.Logger.With("component", "sweeper"),
	}, nil
}

// Run schedules the sweep and blocks until ctx is cancelled. A sweep still in
// progress is allowed to finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{r.logger}),
		cron.SkipIfStillRunning(cronLogger{r.logger}),
	))
	c.Schedule(r.schedule, cron.FuncJob(func() { r.Sweep(ctx) }))

	r.logger.InfoContext(ctx, "starting session sweeper", "schedule", r.spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Sweep runs one expiry check.
func (r *Runner) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	expired, err := r.sessions.ExpireIfStale(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		return
	}
	if expired {
		r.logger.InfoContext(ctx, "expired session cleared")
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

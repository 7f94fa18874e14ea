package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
)

type Sweeper interface {
	Sweep(ctx context.Context) (*Report, error)
}

var (
	mSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_sweeps_total", Help: "Sweeps started, by result.",
	}, []string{"result"})
	mOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_schedules_processed_total", Help: "Due schedules processed, by outcome.",
	}, []string{"status"})
	mSweepDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_sweep_duration_seconds", Help: "Sweep duration.",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	})
)

// Runner fires sweeps from a cron trigger and records their outcome.
type Runner struct {
	Log *zap.Logger
	UC  Sweeper
	Cfg *config.SchedCfg
}

func New(log *zap.Logger, uc Sweeper, cfg *config.SchedCfg) *Runner {
	return &Runner{Log: log.With(zap.String("component", "scheduler.runner")), UC: uc, Cfg: cfg}
}

// Sweep runs one sweep, recording metrics and logging the report.
func (r *Runner) Sweep(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep, err := r.UC.Sweep(ctx)
	mSweepDur.Observe(time.Since(start).Seconds())
	if err != nil {
		mSweeps.WithLabelValues("error").Inc()
		r.Log.Error("sweep failed", zap.Error(err))
		return nil, err
	}
	mSweeps.WithLabelValues("ok").Inc()

	for _, o := range rep.Outcomes {
		mOutcomes.WithLabelValues(string(o.Status)).Inc()
	}
	if rep.Considered == 0 {
		r.Log.Debug(rep.Message)
		return rep, nil
	}
	r.Log.Info("sweep finished",
		zap.Int("considered", rep.Considered),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("partial_failed", rep.PartialFailed),
		zap.Duration("took", time.Since(start)),
	)
	return rep, nil
}

// Run registers the sweep on the cron trigger and blocks until ctx is done.
// A sweep still running when the next tick fires is not overlapped.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{r.Log.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(r.Cfg.Cron, func() { _, _ = r.Sweep(ctx) }); err != nil {
		return fmt.Errorf("cron spec %q: %w", r.Cfg.Cron, err)
	}

	if r.Cfg.RunOnStart {
		_, _ = r.Sweep(ctx)
	}

	c.Start()
	r.Log.Info("trigger started", zap.String("cron", r.Cfg.Cron))

	<-ctx.Done()
	<-c.Stop().Done()
	r.Log.Info("trigger stopped")
	return ctx.Err()
}

type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

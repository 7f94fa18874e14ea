// Package outbox drains the transactional outbox into Kafka.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/domain/outbox"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/obs/retry"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_picked_total", Help: "Messages picked into processing.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_err_total", Help: "Handler errors.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Size of last picked batch.",
	})
	mParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_parked_total", Help: "Messages marked FAILED and no longer retried.",
	})
	mPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_purged_total", Help: "Delivered rows deleted by retention.",
	})
)

type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler

	workers       int
	batchSize     int
	waitTime      time.Duration
	inProgressTTL time.Duration
	maxAttempts   int
	retention     time.Duration
	purgeEvery    time.Duration

	wg sync.WaitGroup
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, cfg config.OutboxCfg) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		log:           log.With(zap.String("component", "outbox")),
		repo:          repo,
		dispatch:      dispatch,
		workers:       cfg.Workers,
		batchSize:     cfg.BatchSize,
		waitTime:      cfg.Wait,
		inProgressTTL: cfg.InProgressTTL,
		maxAttempts:   cfg.MaxAttempts,
		retention:     cfg.Retention,
		purgeEvery:    cfg.PurgeEvery,
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.batchSize <= 0 {
		r.batchSize = 50
	}
	if r.waitTime <= 0 {
		r.waitTime = time.Second
	}
	if r.inProgressTTL <= 0 {
		r.inProgressTTL = time.Minute
	}
	if r.purgeEvery <= 0 {
		r.purgeEvery = 10 * time.Minute
	}
	return r
}

// Start launches the workers and, when retention is set, the purger. Wait
// blocks until they exit after ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	if r.retention > 0 {
		r.wg.Add(1)
		go r.purger(ctx)
	}
}

func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.log.With(zap.Int("worker", id))
	log.Info("outbox worker started", zap.Duration("wait", r.waitTime))

	ticker := time.NewTicker(r.waitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox worker stop")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

func (r *Runner) purger(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.purgeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Purge(ctx)
		}
	}
}

// Purge deletes delivered messages older than the retention window.
func (r *Runner) Purge(ctx context.Context) {
	n, err := r.repo.Purge(ctx, r.retention)
	if err != nil {
		r.log.Warn("outbox purge", zap.Error(err))
		return
	}
	mPurged.Add(float64(n))
	if n > 0 {
		r.log.Info("outbox purged", zap.Int64("rows", n), zap.Duration("retention", r.retention))
	}
}

// exhausted reports whether a failed message should stop being retried.
func (r *Runner) exhausted(m outbox.Message, err error) bool {
	if retry.IsPermanent(err) {
		return true
	}
	return r.maxAttempts > 0 && m.Attempts >= r.maxAttempts
}

// Tick picks one batch, dispatches it and marks the delivered messages.
// Failed messages stay in progress until the TTL expires and are picked again.
func (r *Runner) Tick(ctx context.Context) {
	t0 := time.Now()
	tr := otel.Tracer("outbox.runner")
	prop := otel.GetTextMapPropagator()

	ctxSpan, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.batchSize),
		attribute.String("in_progress_ttl", r.inProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctxSpan, r.batchSize, r.inProgressTTL)
	if err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))
	if len(messages) == 0 {
		return
	}

	okKeys := make([]string, 0, len(messages))
	var parked []string
	for _, m := range messages {
		parent := prop.Extract(ctx, propagation.MapCarrier{
			"traceparent": m.Traceparent,
			"tracestate":  m.Tracestate,
			"baggage":     m.Baggage,
		})
		msgCtx, msgSpan := tr.Start(parent, "outbox.dispatch",
			trace.WithAttributes(
				attribute.String("outbox.key", m.IdempotencyKey),
				attribute.String("outbox.kind", m.Kind.String()),
			),
		)

		handler, herr := r.dispatch(m.Kind)
		if herr != nil {
			msgSpan.RecordError(herr)
			mErr.Inc()
			obs.WithTrace(msgCtx, r.log).Error("no handler for kind",
				zap.Stringer("kind", m.Kind), zap.Error(herr))
			msgSpan.End()
			continue
		}
		if err := handler(msgCtx, m.Data); err != nil {
			msgSpan.RecordError(err)
			mErr.Inc()
			obs.WithTrace(msgCtx, r.log).Error("handler error",
				zap.Stringer("kind", m.Kind), zap.String("key", m.IdempotencyKey),
				zap.Int("attempts", m.Attempts), zap.Error(err))
			if r.exhausted(m, err) {
				parked = append(parked, m.IdempotencyKey)
			}
			msgSpan.End()
			continue
		}
		msgSpan.End()
		okKeys = append(okKeys, m.IdempotencyKey)
		mOk.Inc()
	}

	if len(okKeys) > 0 {
		if err := r.repo.MarkSuccess(ctxSpan, okKeys); err != nil {
			span.RecordError(err)
			mErr.Inc()
			obs.WithTrace(ctxSpan, r.log).Error("mark success error", zap.Error(err))
		}
	}
	if len(parked) > 0 {
		if err := r.repo.MarkFailed(ctxSpan, parked); err != nil {
			span.RecordError(err)
			obs.WithTrace(ctxSpan, r.log).Error("mark failed error", zap.Error(err))
		} else {
			mParked.Add(float64(len(parked)))
			obs.WithTrace(ctxSpan, r.log).Warn("outbox messages parked", zap.Strings("keys", parked))
		}
	}
	mTickDur.Observe(time.Since(t0).Seconds())
}

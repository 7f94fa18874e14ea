// Package leaderelection elects a single scheduler instance with a Postgres
// session-scoped advisory lock.
//
// The lock lives as long as the dedicated connection that took it. The
// heartbeat only detects a dead connection so the leader stops sweeping
// promptly; it does not renew anything.
package leaderelection

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	reasonShutdown = "shutdown"
	reasonConnLost = "conn_lost"
)

var (
	mIsLeader = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_is_leader",
		Help: "1 while this instance holds the scheduler advisory lock.",
	})
	mLost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_leadership_lost_total",
		Help: "Leadership losses by reason.",
	}, []string{"reason"})
)

type Elector struct {
	db                *sql.DB
	lockKey           int64
	retryInterval     time.Duration
	heartbeatInterval time.Duration
	onElected         func(ctx context.Context)
	onDemoted         func()
	log               *zap.Logger
}

// New builds an elector. onElected runs in its own goroutine with a context
// that is cancelled on demotion. onDemoted runs synchronously and must block
// until leader duties have stopped.
func New(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration,
	onElected func(ctx context.Context), onDemoted func(), log *zap.Logger,
) *Elector {
	if log == nil {
		log = zap.NewNop()
	}
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 2 * time.Second
	}
	return &Elector{
		db:                db,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		onElected:         onElected,
		onDemoted:         onDemoted,
		log:               log.With(zap.String("component", "leader"), zap.Int64("lock_key", lockKey)),
	}
}

// Run campaigns for leadership until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	e.log.Info("election loop started",
		zap.Duration("retry", e.retryInterval), zap.Duration("heartbeat", e.heartbeatInterval))
	defer e.log.Info("election loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if reason := e.runOnce(ctx); reason != "" && ctx.Err() == nil {
			e.log.Warn("lost leadership", zap.String("reason", reason), zap.Duration("retry_in", e.retryInterval))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// runOnce returns why leadership ended, or "" when the lock was not taken.
func (e *Elector) runOnce(ctx context.Context) string {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		e.log.Warn("dedicated connection", zap.Error(err))
		return ""
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.lockKey).Scan(&acquired); err != nil {
		e.log.Warn("advisory lock query", zap.Error(err))
		return ""
	}
	if !acquired {
		e.log.Debug("lock held by another instance")
		return ""
	}

	e.log.Info("acquired leadership")
	mIsLeader.Set(1)

	leaderCtx, cancel := context.WithCancel(ctx)
	go e.onElected(leaderCtx)

	reason := e.hold(ctx, conn)

	cancel()
	e.onDemoted()
	mIsLeader.Set(0)
	mLost.WithLabelValues(reason).Inc()

	if reason == reasonShutdown {
		// the connection goes back to the pool, so the session lock must be dropped explicitly
		uctx, ucancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer ucancel()
		if _, err := conn.ExecContext(uctx, "SELECT pg_advisory_unlock($1)", e.lockKey); err != nil {
			e.log.Warn("advisory unlock", zap.Error(err))
		}
	}
	e.log.Info("released leadership", zap.String("reason", reason))
	return reason
}

func (e *Elector) hold(ctx context.Context, conn *sql.Conn) string {
	t := time.NewTicker(e.heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return reasonShutdown
		case <-t.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return reasonShutdown
				}
				e.log.Error("dedicated connection ping failed", zap.Error(err))
				return reasonConnLost
			}
		}
	}
}

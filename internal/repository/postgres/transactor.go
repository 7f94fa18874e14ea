package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var mTx = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "db_transactions_total",
	Help: "Outermost transactions by result.",
}, []string{"result"})

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

var _ Transactor = (*TransactorImpl)(nil)

type TransactorImpl struct {
	db     *DB
	logger *zap.Logger
}

func NewTransactor(db *DB, logger *zap.Logger) *TransactorImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactorImpl{
		db:     db,
		logger: logger,
	}
}

// WithTx runs function inside a transaction carried by ctx. Nested calls join
// the outer transaction; only the outermost call commits or rolls back.
func (t *TransactorImpl) WithTx(ctx context.Context, function func(ctx context.Context) error) (txErr error) {
	ctxWithTx, tx, owner, err := injectTx(ctx, t.db)
	if err != nil {
		mTx.WithLabelValues("begin_error").Inc()
		return fmt.Errorf("begin tx: %w", err)
	}
	if !owner {
		return function(ctxWithTx)
	}

	ctxWithTx, span := otel.Tracer("postgres").Start(ctxWithTx, "db.tx")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			mTx.WithLabelValues("panic").Inc()
			panic(p)
		}
		if txErr != nil {
			span.RecordError(txErr)
			span.SetStatus(codes.Error, "rolled back")
			if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				t.logger.Error("rollback", zap.Error(err))
			}
			mTx.WithLabelValues("rollback").Inc()
			return
		}
		if err := tx.Commit(ctx); err != nil {
			t.logger.Error("commit", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit failed")
			mTx.WithLabelValues("commit_error").Inc()
			txErr = fmt.Errorf("commit: %w", err)
			return
		}
		mTx.WithLabelValues("commit").Inc()
	}()

	return function(ctxWithTx)
}

type txInjector struct{}

var ErrTxNotFound = errors.New("tx not found in context")

func injectTx(ctx context.Context, db *DB) (context.Context, pgx.Tx, bool, error) {
	if tx, err := extractTx(ctx); err == nil {
		return ctx, tx, false, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, false, err
	}

	return context.WithValue(ctx, txInjector{}, tx), tx, true, nil
}

func extractTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txInjector{}).(pgx.Tx)
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, err := extractTx(ctx); err == nil && tx != nil {
		return tx
	}
	return db.Pool
}

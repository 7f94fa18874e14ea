package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/leaderelection"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/obs/retry"
	"github.com/NordCoder/GetMoreSeo/internal/outbox"
	kafkaRepo "github.com/NordCoder/GetMoreSeo/internal/repository/kafka"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler"
)

func main() {
	cfgPath := flag.String("config", "config/scheduler.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting scheduler",
		zap.String("cron", cfg.Sched.Cron),
		zap.Bool("kafka", cfg.Kafka.Enable),
		zap.Bool("leader_election", cfg.Leader.Enable),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	checks := []obs.HealthCheck{{Name: "db", Check: db.Ping}}

	// wiring
	uc, err := scheduler.NewFromConfig(cfg, db, l)
	if err != nil {
		l.Fatal("build sweep", zap.Error(err))
	}
	runner := scheduler.New(l, uc, &cfg.Sched)

	var outboxRunner *outbox.Runner
	if cfg.Kafka.Enable {
		prod := kafkaRepo.BootstrapProducer(ctx, cfg.Kafka, l)
		defer func() { _ = prod.Close() }()

		dispatch := outbox.MakeGlobalOutboxHandler(kafkaRepo.NewScheduleEventsKafka(prod), retry.DefaultKafkaPolicy(l))
		outboxRunner = outbox.NewOutboxRunner(l, pg.NewOutboxRepo(db), dispatch, cfg.Outbox)
		outboxRunner.Start(ctx)
	}

	// run
	errCh := make(chan error, 1)
	if cfg.Leader.Enable {
		sqlDB, err := sql.Open("postgres", cfg.DB.DSN)
		if err != nil {
			l.Fatal("leader db", zap.Error(err))
		}
		defer sqlDB.Close()
		checks = append(checks, obs.HealthCheck{Name: "leader_db", Check: sqlDB.PingContext})
		go func() {
			runAsLeader(ctx, sqlDB, cfg.Leader, runner, l)
			errCh <- ctx.Err()
		}()
	} else {
		go func() { errCh <- runner.Run(ctx) }()
	}

	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, l, checks...)
	l.Info("scheduler started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}
	stop()

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	if outboxRunner != nil {
		outboxRunner.Wait()
	}
	l.Info("bye")
}

// runAsLeader runs the cron trigger only while this instance holds the
// advisory lock.
func runAsLeader(ctx context.Context, db *sql.DB, cfg config.LeaderCfg, runner *scheduler.Runner, l *zap.Logger) {
	var (
		mu   sync.Mutex
		done chan struct{}
	)
	onElected := func(lctx context.Context) {
		ch := make(chan struct{})
		mu.Lock()
		done = ch
		mu.Unlock()
		defer close(ch)
		if err := runner.Run(lctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}
	onDemoted := func() {
		mu.Lock()
		ch := done
		mu.Unlock()
		if ch != nil {
			<-ch
		}
	}
	leaderelection.New(db, cfg.LockKey, cfg.RetryInterval, cfg.HeartbeatInterval, onElected, onDemoted, l).Run(ctx)
}

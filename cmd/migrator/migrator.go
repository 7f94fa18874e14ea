package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/migrations"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
)

// migrator applies the embedded schema to DB_DSN. It runs as an init
// container before the scheduler and the api-gateway start.
func main() {
	l, err := obs.NewLogger(obs.LogConfig{Level: os.Getenv("LOG_LEVEL"), App: "migrator", Env: os.Getenv("APP_ENV")})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		l.Fatal("DB_DSN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		l.Fatal("ping db", zap.Error(err))
	}
	if err := migrations.Up(ctx, db); err != nil {
		l.Fatal("migrate", zap.Error(err))
	}
	v, err := migrations.Version(ctx, db)
	if err != nil {
		l.Warn("read schema version", zap.Error(err))
	}
	l.Info("migrations applied", zap.Int64("version", v))
}

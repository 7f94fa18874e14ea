package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
)

func main() {
	cfgPath := flag.String("config", "config/api-gateway.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api-gateway stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("bye")
}

// run serves gRPC and the HTTP gateway until ctx is cancelled or either
// server fails, then drains both within the graceful timeout.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting api-gateway", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := initRedis(ctx, cfg, logger)
	defer func() { _ = rdb.Close() }()

	grpcServer, hs, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		return err
	}
	httpSrv, conn, err := buildHTTPServer(cfg, logger, db, rdb)
	if err != nil {
		_ = grpcLn.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watchDB(gctx, hs, db, 10*time.Second, logger)
		return nil
	})
	g.Go(func() error { return serveGRPC(grpcServer, grpcLn, cfg, logger) })
	g.Go(func() error {
		if err := serveHTTP(httpSrv, cfg, logger); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.GracefulTimeout))
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		shutdownHTTP(shCtx, httpSrv, conn)
		gracefulStopGRPC(grpcServer)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

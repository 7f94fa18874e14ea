package main

import (
	"context"
	"net"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
)

const healthService = "getmoreseo.v1.Gateway"

func buildGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcServer := grpc.NewServer(obs.GRPCServerOpts()...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	grpcprometheus.EnableHandlingTimeHistogram()
	grpcprometheus.Register(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

// watchDB flips the health status with the database until ctx is done.
func watchDB(ctx context.Context, hs *health.Server, db *pg.DB, every time.Duration, logger *zap.Logger) {
	set := func() {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := db.Ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("db ping failed", zap.Error(err))
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(healthService, st)
	}
	set()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			set()
		}
	}
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}

func gracefulStopGRPC(s *grpc.Server) { s.GracefulStop() }

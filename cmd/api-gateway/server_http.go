package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	config "github.com/NordCoder/GetMoreSeo/internal/config/api-gateway"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/ratelimit"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/blogposts"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/cron"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/schedules"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, rdb *redis.Client) (*http.Server, *grpc.ClientConn, error) {
	// sweep runs in-process for the cron endpoint
	sweepCfg := cfg.SweepConfig()
	uc, err := scheduler.NewFromConfig(sweepCfg, db, logger)
	if err != nil {
		return nil, nil, err
	}
	sweeper := scheduler.New(logger, uc, &sweepCfg.Sched)

	opts, err := scheduler.OptionsFromConfig(&cfg.Sched)
	if err != nil {
		return nil, nil, err
	}
	scheduleRepo := pg.NewScheduleRepo(db)
	schedUC := schedules.New(scheduleRepo, pg.NewScheduleLogRepo(db), opts.Location, opts.Overflow, nil)

	authUC := auth.NewUseCase(pg.NewAPIKeyRepo(db), auth.Config{
		Secret:     []byte(cfg.Auth.JWTSecret),
		SessionTTL: cfg.Auth.SessionTTL,
	}, logger)

	limiter := ratelimit.New(ratelimit.NewRedisCounter(rdb), cfg.RateLimit.Limit, cfg.RateLimit.Window, auth.RateKey, logger)

	// grpc health surfaced over HTTP through the gateway mux
	conn, err := grpc.NewClient(cfg.Server.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	gw := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors(cfg.Server.CORSOrigins))
	r.Use(obs.HTTPTracing(cfg.App.Name), obs.EchoTraceID, obs.HTTPMetrics(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/healthz", gw)

	r.Route("/v1", func(r chi.Router) {
		cron.NewHandler(cfg.Cron.Secret, sweeper, scheduleRepo, logger).Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authUC), limiter.Middleware)
			schedules.NewHandler(schedUC, logger).Routes(r)
			blogposts.NewHandler(pg.NewBlogRepo(db), logger).Routes(r)
			auth.NewHandler(authUC, logger).Routes(r)
		})
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return httpSrv, conn, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}

func shutdownHTTP(ctx context.Context, srv *http.Server, conn *grpc.ClientConn) {
	_ = srv.Shutdown(ctx)
	_ = conn.Close()
}

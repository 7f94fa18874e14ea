// Package cron exposes the sweep to an external trigger such as a Kubernetes
// CronJob or a hosted cron service.
package cron

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/httpx"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler"
)

const upcomingHorizon = 24 * time.Hour

type StatsSource interface {
	Stats(ctx context.Context, now time.Time, horizon time.Duration) (schedule.Stats, error)
}

type Handler struct {
	secret []byte
	sweep  scheduler.Sweeper
	stats  StatsSource
	log    *zap.Logger
	now    func() time.Time
}

func NewHandler(secret string, sweep scheduler.Sweeper, stats StatsSource, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		secret: []byte(secret),
		sweep:  sweep,
		stats:  stats,
		log:    log.With(zap.String("component", "cron")),
		now:    time.Now,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/cron", func(r chi.Router) {
		r.Use(h.authorize)
		r.Post("/sweep", h.runSweep)
		r.Get("/health", h.health)
	})
}

// authorize requires "Bearer <cron secret>". An empty secret disables the
// endpoints.
func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.secret) == 0 {
			httpx.Error(w, http.StatusServiceUnavailable, "cron endpoints are not configured")
			return
		}
		got := []byte(auth.Bearer(r))
		if subtle.ConstantTimeCompare(got, h.secret) != 1 {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sweep.Sweep(r.Context())
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Error("sweep failed", zap.Error(err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	obs.WithTrace(r.Context(), h.log).Info("sweep done",
		zap.Int("considered", rep.Considered),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
	)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  rep,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	st, err := h.stats.Stats(r.Context(), now, upcomingHorizon)
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Error("schedule stats", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": "stats unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"timestamp":          now,
		"active_schedules":   st.Active,
		"upcoming_schedules": st.Upcoming,
	})
}

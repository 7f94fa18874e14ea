package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler"
)

type sweepFunc func(ctx context.Context) (*scheduler.Report, error)

func (f sweepFunc) Sweep(ctx context.Context) (*scheduler.Report, error) { return f(ctx) }

type statsFunc func(now time.Time, horizon time.Duration) (schedule.Stats, error)

func (f statsFunc) Stats(_ context.Context, now time.Time, horizon time.Duration) (schedule.Stats, error) {
	return f(now, horizon)
}

func serve(h *Handler, method, path, token string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Routes(r)
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSweepRequiresSecret(t *testing.T) {
	called := false
	h := NewHandler("s3cret", sweepFunc(func(context.Context) (*scheduler.Report, error) {
		called = true
		return &scheduler.Report{}, nil
	}), nil, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/cron/sweep", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/cron/sweep", "wrong").Code)
	assert.False(t, called)

	disabled := NewHandler("", nil, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(disabled, http.MethodPost, "/cron/sweep", "").Code)
}

func TestSweepReturnsReport(t *testing.T) {
	h := NewHandler("s3cret", sweepFunc(func(context.Context) (*scheduler.Report, error) {
		return &scheduler.Report{Considered: 2, Succeeded: 1, Failed: 1}, nil
	}), nil, nil)

	rec := serve(h, http.MethodPost, "/cron/sweep", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool             `json:"success"`
		Report  scheduler.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Report.Considered)
	assert.Equal(t, 1, body.Report.Failed)
}

func TestSweepError(t *testing.T) {
	h := NewHandler("s3cret", sweepFunc(func(context.Context) (*scheduler.Report, error) {
		return nil, errors.New("claim: db down")
	}), nil, nil)

	rec := serve(h, http.MethodPost, "/cron/sweep", "s3cret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHealth(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	h := NewHandler("s3cret", nil, statsFunc(func(now time.Time, horizon time.Duration) (schedule.Stats, error) {
		assert.Equal(t, at, now)
		assert.Equal(t, 24*time.Hour, horizon)
		return schedule.Stats{Active: 7, Upcoming: 3}, nil
	}), nil)
	h.now = func() time.Time { return at }

	rec := serve(h, http.MethodGet, "/cron/health", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","timestamp":"2024-01-01T10:00:00Z","active_schedules":7,"upcoming_schedules":3}`, rec.Body.String())

	sick := NewHandler("s3cret", nil, statsFunc(func(time.Time, time.Duration) (schedule.Stats, error) {
		return schedule.Stats{}, errors.New("db down")
	}), nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(sick, http.MethodGet, "/cron/health", "s3cret").Code)
}

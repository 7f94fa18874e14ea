// Package ratelimit is a fixed-window request limiter whose counters live in
// Redis so every gateway replica shares them.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var mRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "http_rate_limited_total",
	Help: "Requests rejected by the rate limiter.",
})

// Counter increments key and returns the new count within the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the window anchored at the first hit.
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline: %w", err)
	}
	return incr.Val(), nil
}

// KeyFunc names the bucket for a request; "" skips limiting.
type KeyFunc func(r *http.Request) string

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	key     KeyFunc
	now     func() time.Time
	log     *zap.Logger
}

func New(counter Counter, limit int, window time.Duration, key KeyFunc, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		key:     key,
		now:     time.Now,
		log:     log.With(zap.String("component", "ratelimit")),
	}
}

// Allow counts one request for key. Counter errors let the request through.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int64) {
	bucket := l.now().UTC().Truncate(l.window).Unix()
	n, err := l.counter.Incr(ctx, "rl:"+key+":"+strconv.FormatInt(bucket, 10), l.window)
	if err != nil {
		l.log.Warn("rate limit counter unavailable", zap.Error(err))
		return true, 0
	}
	return n <= l.limit, n
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := l.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, n := l.Allow(r.Context(), key)
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		if n > 0 {
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(l.limit-n, 0), 10))
		}
		if !ok {
			mRejected.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

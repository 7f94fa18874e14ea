package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/httpx"
)

type ctxKey int

const (
	userIDKey ctxKey = iota + 1
	methodKey
)

// Method is how the caller authenticated.
type Method string

const (
	MethodAPIKey  Method = "api_key"
	MethodSession Method = "session"
)

func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

func MethodFromCtx(ctx context.Context) Method {
	m, _ := ctx.Value(methodKey).(Method)
	return m
}

// WithUser puts an authenticated caller on ctx.
func WithUser(ctx context.Context, id uuid.UUID, m Method) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	return context.WithValue(ctx, methodKey, m)
}

type Verifier interface {
	VerifyAPIKey(ctx context.Context, raw string) (uuid.UUID, error)
	ParseSession(token string) (uuid.UUID, error)
}

// Middleware accepts X-API-Key or a Bearer session token and rejects
// everything else with 401.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-API-Key"); key != "" {
				uid, err := v.VerifyAPIKey(r.Context(), key)
				if err != nil {
					httpx.Error(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid, MethodAPIKey)))
				return
			}
			if token := Bearer(r); token != "" {
				uid, err := v.ParseSession(token)
				if err != nil {
					httpx.Error(w, http.StatusUnauthorized, "invalid or expired session")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid, MethodSession)))
				return
			}
			httpx.Error(w, http.StatusUnauthorized, "authentication required")
		})
	}
}

// RequireSession rejects callers that authenticated with an API key.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if MethodFromCtx(r.Context()) != MethodSession {
			httpx.Error(w, http.StatusForbidden, "session authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateKey buckets authenticated requests per user.
func RateKey(r *http.Request) string {
	if id, ok := UserIDFromCtx(r.Context()); ok {
		return "user:" + id.String()
	}
	return ""
}

func Bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const p = "Bearer "
	if len(h) > len(p) && strings.EqualFold(h[:len(p)], p) {
		return strings.TrimSpace(h[len(p):])
	}
	return ""
}

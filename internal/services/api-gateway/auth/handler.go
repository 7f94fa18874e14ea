package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/httpx"
)

type Handler struct {
	uc  *Usecase
	log *zap.Logger
}

func NewHandler(uc *Usecase, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{uc: uc, log: log}
}

// Routes mounts key issuance; the router must already run Middleware.
func (h *Handler) Routes(r chi.Router) {
	r.With(RequireSession).Post("/api-keys", h.issueKey)
}

type issueKeyResponse struct {
	Key       string    `json:"key"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	raw, k, err := h.uc.IssueAPIKey(r.Context(), uid)
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Error("issue api key", zap.Stringer("user_id", uid), zap.Error(err))
		httpx.Fail(w, err)
		return
	}
	obs.WithTrace(r.Context(), h.log).Info("api key issued", zap.Stringer("user_id", uid), zap.String("prefix", k.Prefix))
	httpx.JSON(w, http.StatusCreated, issueKeyResponse{Key: raw, Prefix: k.Prefix, CreatedAt: k.CreatedAt})
}

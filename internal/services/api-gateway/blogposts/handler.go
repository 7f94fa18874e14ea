package blogposts

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/domain/blog"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/httpx"
)

const defaultLimit = 20

type Handler struct {
	posts blog.Repo
	log   *zap.Logger
}

func NewHandler(posts blog.Repo, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{posts: posts, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/blog-posts", h.list)
	r.Get("/blog-posts/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromCtx(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	out, err := h.posts.ListByUser(r.Context(), uid, limit)
	if err != nil {
		obs.WithTrace(r.Context(), h.log).Error("list blog posts", zap.Error(err))
		httpx.Fail(w, err)
		return
	}
	if out == nil {
		out = []*blog.Post{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posts": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid post id")
		return
	}
	uid, _ := auth.UserIDFromCtx(r.Context())
	p, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	if p.UserID != uid {
		httpx.Fail(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

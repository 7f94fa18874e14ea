package blogposts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/GetMoreSeo/internal/domain/blog"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
)

type memPosts struct {
	posts     []*blog.Post
	lastLimit int
}

func (m *memPosts) Insert(_ context.Context, p *blog.Post) error {
	m.posts = append(m.posts, p)
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id uuid.UUID) (*blog.Post, error) {
	for _, p := range m.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, pg.ErrNotFound
}

func (m *memPosts) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*blog.Post, error) {
	m.lastLimit = limit
	var out []*blog.Post
	for _, p := range m.posts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func serve(h *Handler, user uuid.UUID, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Routes(r)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(auth.WithUser(req.Context(), user, auth.MethodSession))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBlogPosts(t *testing.T) {
	owner := uuid.New()
	post := &blog.Post{ID: uuid.New(), UserID: owner, Title: "Widgets 101"}
	repo := &memPosts{posts: []*blog.Post{post, {ID: uuid.New(), UserID: uuid.New(), Title: "other"}}}
	h := NewHandler(repo, nil)

	rec := serve(h, owner, "/blog-posts?limit=500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Widgets 101")
	assert.NotContains(t, rec.Body.String(), "other")
	assert.Equal(t, defaultLimit, repo.lastLimit)

	assert.Equal(t, http.StatusOK, serve(h, owner, "/blog-posts/"+post.ID.String()).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, uuid.New(), "/blog-posts/"+post.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, owner, "/blog-posts/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, owner, "/blog-posts/nope").Code)

	rec = serve(h, uuid.New(), "/blog-posts")
	assert.JSONEq(t, `{"posts":[]}`, rec.Body.String())
}

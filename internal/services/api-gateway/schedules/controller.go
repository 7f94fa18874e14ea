package schedules

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
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
	return &Handler{uc: uc, log: log.With(zap.String("component", "schedules"))}
}

// Routes mounts /schedules on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/preview", h.preview)
		r.Get("/{id}", h.get)
		r.Get("/{id}/logs", h.logs)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/reactivate", h.reactivate)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, schedule.ErrInvalid) {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if httpx.Status(err) == http.StatusInternalServerError {
		obs.WithTrace(r.Context(), h.log).Error("schedule request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	httpx.Fail(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromCtx(r.Context())
	var in CreateInput
	if err := httpx.Decode(w, r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s, err := h.uc.Create(r.Context(), uid, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	obs.WithTrace(r.Context(), h.log).Info("schedule created",
		zap.Stringer("schedule_id", s.ID), zap.Stringer("user_id", uid), zap.Time("next_run", s.NextRun))
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromCtx(r.Context())
	out, err := h.uc.ListByUser(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []*schedule.Schedule{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedules": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := auth.UserIDFromCtx(r.Context())
	s, err := h.uc.Get(r.Context(), uid, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := auth.UserIDFromCtx(r.Context())
	s, err := h.uc.Cancel(r.Context(), uid, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := auth.UserIDFromCtx(r.Context())
	s, err := h.uc.Reactivate(r.Context(), uid, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := auth.UserIDFromCtx(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.uc.Logs(r.Context(), uid, id, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": out})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := CreateInput{
		Frequency: schedule.Frequency(q.Get("frequency")),
		TimeOfDay: q.Get("time_of_day"),
		Timezone:  q.Get("timezone"),
	}
	var err error
	if in.DayOfWeek, err = optInt(q.Get("day_of_week")); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid day_of_week")
		return
	}
	if in.DayOfMonth, err = optInt(q.Get("day_of_month")); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid day_of_month")
		return
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		in.NextRun = &t
	}
	n, _ := strconv.Atoi(q.Get("count"))

	runs, err := h.uc.Preview(in, n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for i := range runs {
		runs[i] = runs[i].UTC()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"next_runs": runs})
}

func optInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

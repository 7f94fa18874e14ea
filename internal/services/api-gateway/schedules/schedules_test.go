package schedules

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/auth"
)

type memRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*schedule.Schedule
}

func newMemRepo() *memRepo { return &memRepo{byID: map[uuid.UUID]*schedule.Schedule{}} }

func (m *memRepo) Create(_ context.Context, s *schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, pg.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*schedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*schedule.Schedule
	for _, s := range m.byID {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) ClaimDue(context.Context, time.Time, int, time.Duration) ([]*schedule.Schedule, error) {
	return nil, nil
}

func (m *memRepo) Advance(context.Context, uuid.UUID, time.Time, time.Time) error { return nil }

func (m *memRepo) RecordFailure(context.Context, uuid.UUID, string, int) (bool, error) {
	return false, nil
}

func (m *memRepo) Deactivate(_ context.Context, id uuid.UUID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	s.IsActive = false
	s.StatusMessage = msg
	return nil
}

func (m *memRepo) Reactivate(_ context.Context, id uuid.UUID, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	s.IsActive = true
	s.NextRun = next
	s.FailureCount = 0
	s.StatusMessage = schedule.StatusReactivated
	return nil
}

func (m *memRepo) Stats(context.Context, time.Time, time.Duration) (schedule.Stats, error) {
	return schedule.Stats{}, nil
}

type memLogs struct{ entries []*schedulelog.Entry }

func (m *memLogs) Insert(_ context.Context, e *schedulelog.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLogs) ListBySchedule(_ context.Context, id uuid.UUID, limit int) ([]*schedulelog.Entry, error) {
	var out []*schedulelog.Entry
	for _, e := range m.entries {
		if e.ScheduleID == id && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

var now = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func newUC(repo schedule.Repo, logs schedulelog.Repo) *Usecase {
	return New(repo, logs, time.UTC, nextrun.RollOver, func() time.Time { return now })
}

func TestCreateComputesNextRun(t *testing.T) {
	repo := newMemRepo()
	uc := newUC(repo, &memLogs{})
	owner := uuid.New()

	s, err := uc.Create(context.Background(), owner, CreateInput{
		Target:     "https://acme.test",
		Frequency:  "Weekly",
		DayOfWeek:  intp(3),
		DayOfMonth: intp(12),
		TimeOfDay:  "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), s.NextRun)
	assert.Equal(t, schedule.Weekly, s.Frequency)
	assert.Nil(t, s.DayOfMonth)
	assert.True(t, s.IsActive)
	assert.Equal(t, owner, s.UserID)
}

func TestCreateExplicitNextRun(t *testing.T) {
	uc := newUC(newMemRepo(), &memLogs{})
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	s, err := uc.Create(context.Background(), uuid.New(), CreateInput{
		Target: "https://acme.test", Frequency: schedule.Daily, TimeOfDay: "09:00", NextRun: &at,
	})
	require.NoError(t, err)
	assert.True(t, at.Equal(s.NextRun))
	assert.Equal(t, time.UTC, s.NextRun.Location())
}

func TestCreateValidation(t *testing.T) {
	uc := newUC(newMemRepo(), &memLogs{})
	cases := map[string]CreateInput{
		"no target":       {Frequency: schedule.Daily, TimeOfDay: "09:00"},
		"bad frequency":   {Target: "x", Frequency: "hourly", TimeOfDay: "09:00"},
		"weekly no day":   {Target: "x", Frequency: schedule.Weekly, TimeOfDay: "09:00"},
		"monthly day 32":  {Target: "x", Frequency: schedule.Monthly, DayOfMonth: intp(32), TimeOfDay: "09:00"},
		"bad time":        {Target: "x", Frequency: schedule.Daily, TimeOfDay: "24:00"},
		"unknown zone":    {Target: "x", Frequency: schedule.Daily, TimeOfDay: "09:00", Timezone: "Mars/Base"},
		"weekly day is 7": {Target: "x", Frequency: schedule.Weekly, DayOfWeek: intp(7), TimeOfDay: "09:00"},
	}
	for name, in := range cases {
		_, err := uc.Create(context.Background(), uuid.New(), in)
		require.ErrorIs(t, err, schedule.ErrInvalid, name)
	}
}

func TestOwnership(t *testing.T) {
	repo := newMemRepo()
	uc := newUC(repo, &memLogs{})
	owner, stranger := uuid.New(), uuid.New()
	s, err := uc.Create(context.Background(), owner, CreateInput{Target: "https://a.test", Frequency: schedule.Daily, TimeOfDay: "09:00"})
	require.NoError(t, err)

	_, err = uc.Get(context.Background(), stranger, s.ID)
	require.Error(t, err)
	_, err = uc.Cancel(context.Background(), stranger, s.ID)
	require.Error(t, err)

	stored, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestCancelAndReactivate(t *testing.T) {
	repo := newMemRepo()
	uc := newUC(repo, &memLogs{})
	owner := uuid.New()
	past := now.Add(-72 * time.Hour)
	s, err := uc.Create(context.Background(), owner, CreateInput{
		Target: "https://a.test", Frequency: schedule.Daily, TimeOfDay: "09:00", NextRun: &past,
	})
	require.NoError(t, err)

	c, err := uc.Cancel(context.Background(), owner, s.ID)
	require.NoError(t, err)
	assert.False(t, c.IsActive)
	assert.Equal(t, schedule.StatusCancelled, c.StatusMessage)

	r, err := uc.Reactivate(context.Background(), owner, s.ID)
	require.NoError(t, err)
	assert.True(t, r.IsActive)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), r.NextRun)

	stored, _ := repo.GetByID(context.Background(), s.ID)
	assert.Equal(t, r.NextRun, stored.NextRun)
}

func TestPreview(t *testing.T) {
	uc := newUC(newMemRepo(), &memLogs{})
	runs, err := uc.Preview(CreateInput{Frequency: schedule.Monthly, DayOfMonth: intp(31), TimeOfDay: "08:00"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC),
	}, runs)

	runs, err = uc.Preview(CreateInput{Frequency: schedule.Daily, TimeOfDay: "08:00"}, 1000)
	require.NoError(t, err)
	assert.Len(t, runs, maxPreview)
}

func newServer(uc *Usecase, user uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), user, auth.MethodAPIKey)))
		})
	})
	NewHandler(uc, nil).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestHandlers(t *testing.T) {
	repo := newMemRepo()
	logs := &memLogs{}
	uc := newUC(repo, logs)
	owner := uuid.New()
	h := newServer(uc, owner)

	rec := do(t, h, http.MethodPost, "/schedules", map[string]any{
		"website_url": "https://acme.test", "frequency": "daily", "time_of_day": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created schedule.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), created.NextRun.UTC())

	rec = do(t, h, http.MethodGet, "/schedules/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/schedules", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID.String())

	require.NoError(t, logs.Insert(context.Background(), &schedulelog.Entry{ScheduleID: created.ID, Status: schedulelog.StatusSuccess}))
	rec = do(t, h, http.MethodGet, "/schedules/"+created.ID.String()+"/logs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)

	rec = do(t, h, http.MethodPost, "/schedules/"+created.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), schedule.StatusCancelled)

	rec = do(t, h, http.MethodPost, "/schedules/"+created.ID.String()+"/reactivate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/schedules/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/schedules/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/schedules", map[string]any{
		"website_url": "https://acme.test", "frequency": "weekly", "time_of_day": "09:00",
	}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/schedules", map[string]any{"bogus": 1}).Code)

	stranger := newServer(uc, uuid.New())
	assert.Equal(t, http.StatusForbidden, do(t, stranger, http.MethodGet, "/schedules/"+created.ID.String(), nil).Code)
}

func TestPreviewHandler(t *testing.T) {
	h := newServer(newUC(newMemRepo(), &memLogs{}), uuid.New())

	rec := do(t, h, http.MethodGet, "/schedules/preview?frequency=weekly&day_of_week=3&time_of_day=09:00&count=2&from=2024-01-01T10:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"next_runs":["2024-01-03T09:00:00Z","2024-01-10T09:00:00Z"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/schedules/preview?frequency=weekly&day_of_week=x&time_of_day=09:00", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

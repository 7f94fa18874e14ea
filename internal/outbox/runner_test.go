package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
	"github.com/NordCoder/GetMoreSeo/internal/domain/outbox"
	"github.com/NordCoder/GetMoreSeo/internal/obs/retry"
)

type memRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
	failed  []string
	purged  []time.Duration
}

func (m *memRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (m *memRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(batch, len(m.pending))
	out := m.pending[:n]
	m.pending = m.pending[n:]
	for i := range out {
		out[i].Attempts++
	}
	return out, nil
}

func (m *memRepo) MarkFailed(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, keys...)
	return nil
}

func (m *memRepo) Purge(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, olderThan)
	return 3, nil
}

func (m *memRepo) MarkSuccess(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, keys...)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.ScheduleExecuted
	fail   map[uuid.UUID]bool
}

func (p *recordingPublisher) PublishScheduleExecuted(_ context.Context, ev kafka.ScheduleExecuted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[ev.ScheduleID] {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func enqueue(t *testing.T, r *memRepo, ev kafka.ScheduleExecuted) string {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	key := "schedule_executed:" + ev.ScheduleID.String()
	require.NoError(t, r.Enqueue(context.Background(), key, outbox.KindScheduleExecuted, data))
	return key
}

func TestTickPublishesAndMarks(t *testing.T) {
	repo := &memRepo{}
	ok := kafka.ScheduleExecuted{ScheduleID: uuid.New(), Target: "https://a.test", RanAt: time.Unix(1700000000, 0).UTC()}
	bad := kafka.ScheduleExecuted{ScheduleID: uuid.New(), Target: "https://b.test"}
	okKey := enqueue(t, repo, ok)
	enqueue(t, repo, bad)
	require.NoError(t, repo.Enqueue(context.Background(), "weird", outbox.Kind(99), nil))

	pub := &recordingPublisher{fail: map[uuid.UUID]bool{bad.ScheduleID: true}}
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(pub, retry.Policy{Attempts: 2}), config.OutboxCfg{BatchSize: 10})

	r.Tick(context.Background())

	assert.Equal(t, []string{okKey}, repo.done)
	require.Len(t, pub.events, 1)
	assert.Equal(t, ok, pub.events[0])
}

func TestHandlerRejectsBadPayload(t *testing.T) {
	h, err := MakeGlobalOutboxHandler(&recordingPublisher{}, retry.Policy{})(outbox.KindScheduleExecuted)
	require.NoError(t, err)
	err = h(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}

func TestTickParksUndeliverable(t *testing.T) {
	repo := &memRepo{}
	flaky := kafka.ScheduleExecuted{ScheduleID: uuid.New()}
	enqueue(t, repo, flaky)
	repo.pending[0].Attempts = 2
	require.NoError(t, repo.Enqueue(context.Background(), "garbage", outbox.KindScheduleExecuted, []byte("{")))

	pub := &recordingPublisher{fail: map[uuid.UUID]bool{flaky.ScheduleID: true}}
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(pub, retry.Policy{}),
		config.OutboxCfg{BatchSize: 10, MaxAttempts: 3})

	r.Tick(context.Background())

	assert.Empty(t, repo.done)
	assert.ElementsMatch(t, []string{"schedule_executed:" + flaky.ScheduleID.String(), "garbage"}, repo.failed)
}

func TestTickKeepsRetryingBelowMaxAttempts(t *testing.T) {
	repo := &memRepo{}
	ev := kafka.ScheduleExecuted{ScheduleID: uuid.New()}
	enqueue(t, repo, ev)

	pub := &recordingPublisher{fail: map[uuid.UUID]bool{ev.ScheduleID: true}}
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(pub, retry.Policy{}),
		config.OutboxCfg{BatchSize: 10, MaxAttempts: 3})

	r.Tick(context.Background())
	assert.Empty(t, repo.failed)
}

func TestPurgeUsesRetention(t *testing.T) {
	repo := &memRepo{}
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(&recordingPublisher{}, retry.Policy{}),
		config.OutboxCfg{Retention: 48 * time.Hour})

	r.Purge(context.Background())
	assert.Equal(t, []time.Duration{48 * time.Hour}, repo.purged)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	repo := &memRepo{}
	key := enqueue(t, repo, kafka.ScheduleExecuted{ScheduleID: uuid.New()})
	pub := &recordingPublisher{}
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(pub, retry.Policy{}),
		config.OutboxCfg{Workers: 2, BatchSize: 5, Wait: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.done) == 1 && repo.done[0] == key
	}, time.Second, 5*time.Millisecond)

	cancel()
	r.Wait()
}

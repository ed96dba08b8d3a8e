package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*Event
	order  []uuid.UUID
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uuid.UUID]*Event)}
}

func (f *fakeEventRepo) add(eventType string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.events[id] = &Event{
		ID:        id,
		TenantID:  1,
		EntryID:   int64(len(f.order) + 1),
		EventType: eventType,
		Payload:   []byte(`{}`),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	f.order = append(f.order, id)
	return id
}

func (f *fakeEventRepo) PollPending(ctx context.Context, limit int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, id := range f.order {
		if len(out) >= limit {
			break
		}
		if e := f.events[id]; e.Status == StatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) Ack(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return ErrEventNotFound
	}
	now := time.Now()
	e.Status = StatusProcessed
	e.ProcessedAt = &now
	return nil
}

func (f *fakeEventRepo) Nack(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Attempts++
	e.LastError = &cause
	if e.Attempts >= maxAttempts {
		e.Status = StatusFailed
	}
	return nil
}

func (f *fakeEventRepo) ListFailed(ctx context.Context, limit int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, id := range f.order {
		if e := f.events[id]; e.Status == StatusFailed {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) get(id uuid.UUID) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id]
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []uuid.UUID
	failWith  error
}

func (s *recordingSink) Deliver(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.delivered = append(s.delivered, event.ID)
	return nil
}

func TestDrainAcksDelivered(t *testing.T) {
	repo := newFakeEventRepo()
	a := repo.add(EventJournalPosted)
	b := repo.add(EventJournalVoided)
	sink := &recordingSink{}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{})

	d.Drain(context.Background())

	assert.Len(t, sink.delivered, 2)
	assert.Equal(t, StatusProcessed, repo.get(a).Status)
	assert.Equal(t, StatusProcessed, repo.get(b).Status)
	require.NotNil(t, repo.get(a).ProcessedAt)
}

func TestDrainNacksOnSinkFailure(t *testing.T) {
	repo := newFakeEventRepo()
	id := repo.add(EventJournalPosted)
	sink := &recordingSink{failWith: errors.New("queue unavailable")}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{MaxAttempts: 3})

	d.Drain(context.Background())

	got := repo.get(id)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "queue unavailable", *got.LastError)
}

func TestDrainDeadLettersAtMaxAttempts(t *testing.T) {
	repo := newFakeEventRepo()
	id := repo.add(EventJournalPosted)
	sink := &recordingSink{failWith: errors.New("queue unavailable")}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{MaxAttempts: 3})

	for i := 0; i < 3; i++ {
		d.Drain(context.Background())
	}

	got := repo.get(id)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)

	// Dead-lettered events stop flowing; subsequent drains skip them.
	d.Drain(context.Background())
	assert.Equal(t, 3, repo.get(id).Attempts)

	failed, err := repo.ListFailed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
}

func TestDrainRespectsBatchSize(t *testing.T) {
	repo := newFakeEventRepo()
	for i := 0; i < 5; i++ {
		repo.add(EventJournalPosted)
	}
	sink := &recordingSink{}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{BatchSize: 2})

	d.Drain(context.Background())
	assert.Len(t, sink.delivered, 2)
	d.Drain(context.Background())
	d.Drain(context.Background())
	assert.Len(t, sink.delivered, 5)
}

// lostAckRepo swallows the first ack without flipping the event, the shape a
// poll racing an in-flight ack takes. The event stays PENDING and shows up in
// the next batch.
type lostAckRepo struct {
	*fakeEventRepo
	dropped bool
}

func (r *lostAckRepo) Ack(ctx context.Context, id uuid.UUID) error {
	if !r.dropped {
		r.dropped = true
		return nil
	}
	return r.fakeEventRepo.Ack(ctx, id)
}

func TestDrainRedeliversWhenAckRacesPoll(t *testing.T) {
	repo := &lostAckRepo{fakeEventRepo: newFakeEventRepo()}
	id := repo.add(EventJournalPosted)
	sink := &recordingSink{}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{})

	d.Drain(context.Background())
	d.Drain(context.Background())

	// At-least-once: the sink sees the event twice, nothing errors, and the
	// second ack settles it.
	assert.Equal(t, []uuid.UUID{id, id}, sink.delivered)
	got := repo.get(id)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, 0, got.Attempts)
}

func TestRedisNotifierWakeAndWait(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := NewRedisNotifier(client, "test:wake")
	ctx := context.Background()

	require.NoError(t, n.Wake(ctx))
	require.NoError(t, n.Wait(ctx, time.Second))
}

func TestRedisNotifierWaitTimeoutIsNotError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := NewRedisNotifier(client, "test:wake")

	done := make(chan error, 1)
	go func() {
		done <- n.Wait(context.Background(), 50*time.Millisecond)
	}()
	mr.FastForward(100 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after timeout")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := newFakeEventRepo()
	repo.add(EventJournalPosted)
	sink := &recordingSink{}
	d := NewDispatcher(repo, sink, nil, nil, DispatcherConfig{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.delivered) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

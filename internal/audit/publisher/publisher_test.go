package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/audit"
	auditmemory "shepherd/internal/audit/store/memory"
	id "shepherd/pkg/domain"
)

func event(typ audit.EventType) audit.Event {
	return audit.Event{
		Type:           typ,
		ActorSubjectID: id.NewSubjectID(),
		TargetID:       "target",
		TargetType:     audit.TargetUser,
	}
}

func TestEmitSync(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.New()
	p := New(store)

	p.Emit(ctx, event(audit.EventRoleUpdated))

	events, err := p.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEmitAsyncDrainsOnClose(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.New()
	p := New(store, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		p.Emit(ctx, event(audit.EventRoleUpdated))
	}
	p.Close()

	events, err := store.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

// blockingStore parks every Append until released, so the channel buffer can
// be filled deterministically.
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (s *blockingStore) Append(_ context.Context, _ audit.Event) (id.EventID, error) {
	<-s.release
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return id.NewEventID(), nil
}

func (s *blockingStore) List(_ context.Context, _ audit.Filter) ([]audit.Event, error) {
	return nil, nil
}

func TestEmitAsyncDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{release: make(chan struct{})}
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_dropped_total"})
	p := New(store, WithAsyncBuffer(2), WithDropCounter(dropped))

	// One event is parked inside Append, two fill the buffer, the rest drop.
	deadline := time.After(time.Second)
	for i := 0; i < 6; i++ {
		p.Emit(ctx, event(audit.EventRoleUpdated))
		select {
		case <-deadline:
			t.Fatal("emit blocked")
		default:
		}
	}

	assert.GreaterOrEqual(t, testutil.ToFloat64(dropped), float64(3))

	close(store.release)
	p.Close()
}

// failingStore always rejects appends.
type failingStore struct{}

func (failingStore) Append(_ context.Context, _ audit.Event) (id.EventID, error) {
	return id.EventID{}, errors.New("disk full")
}

func (failingStore) List(_ context.Context, _ audit.Filter) ([]audit.Event, error) {
	return nil, nil
}

func TestEmitSyncSwallowsStoreFailure(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_dropped_sync_total"})
	p := New(failingStore{}, WithDropCounter(dropped))

	// Must not panic or block; the mutation path never sees audit failures.
	p.Emit(context.Background(), event(audit.EventTenantCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(dropped))
}

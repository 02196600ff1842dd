package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/audit"
	id "shepherd/pkg/domain"
)

func TestAppendAssignsServerFields(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return frozen }))

	clientTime := frozen.Add(-48 * time.Hour)
	eventID, err := s.Append(ctx, audit.Event{
		Type:           audit.EventRoleUpdated,
		ActorSubjectID: id.NewSubjectID(),
		TargetID:       "some-user",
		TargetType:     audit.TargetUser,
		CreatedAt:      clientTime,
	})
	require.NoError(t, err)
	assert.False(t, eventID.IsNil())

	events, err := s.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, frozen, events[0].CreatedAt, "client timestamps are ignored")
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	}))

	actor := id.NewSubjectID()
	types := []audit.EventType{
		audit.EventRoleUpdated,
		audit.EventTenantCreated,
		audit.EventRoleUpdated,
		audit.EventTenantDisabled,
	}
	for _, typ := range types {
		_, err := s.Append(ctx, audit.Event{Type: typ, ActorSubjectID: actor, TargetID: "x", TargetType: audit.TargetUser})
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		events, err := s.List(ctx, audit.Filter{})
		require.NoError(t, err)
		require.Len(t, events, 4)
		assert.Equal(t, audit.EventTenantDisabled, events[0].Type)
		assert.True(t, events[0].CreatedAt.After(events[3].CreatedAt))
	})

	t.Run("by type", func(t *testing.T) {
		events, err := s.List(ctx, audit.Filter{Type: audit.EventRoleUpdated})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("limit", func(t *testing.T) {
		events, err := s.List(ctx, audit.Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("time window", func(t *testing.T) {
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		events, err := s.List(ctx, audit.Filter{
			From: base.Add(2 * time.Minute),
			To:   base.Add(3 * time.Minute),
		})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}

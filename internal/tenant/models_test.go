package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("creates active tenant", func(t *testing.T) {
		tn, err := New(id.NewTenantID(), "Grace Fellowship", now)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, tn.Status)
		assert.True(t, tn.IsActive())
		assert.Equal(t, now, tn.CreatedAt)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := New(id.NewTenantID(), "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects overlong name", func(t *testing.T) {
		long := make([]byte, 129)
		for i := range long {
			long[i] = 'a'
		}
		_, err := New(id.NewTenantID(), string(long), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestTenantTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	t.Run("disable then reactivate", func(t *testing.T) {
		tn, err := New(id.NewTenantID(), "Hope Chapel", now)
		require.NoError(t, err)

		require.NoError(t, tn.Disable(later))
		assert.Equal(t, StatusDisabled, tn.Status)
		assert.False(t, tn.IsActive())
		assert.Equal(t, later, tn.UpdatedAt)

		require.NoError(t, tn.Reactivate(later.Add(time.Hour)))
		assert.Equal(t, StatusActive, tn.Status)
	})

	t.Run("disable is not idempotent", func(t *testing.T) {
		tn, err := New(id.NewTenantID(), "Hope Chapel", now)
		require.NoError(t, err)
		require.NoError(t, tn.Disable(later))

		err = tn.Disable(later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("reactivate on active tenant fails", func(t *testing.T) {
		tn, err := New(id.NewTenantID(), "Hope Chapel", now)
		require.NoError(t, err)

		err = tn.Reactivate(later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

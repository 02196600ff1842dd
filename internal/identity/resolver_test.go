package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/roles"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
)

type stubVerifier struct {
	claims *Claims
	err    error
}

func (v *stubVerifier) Verify(string) (*Claims, error) {
	return v.claims, v.err
}

type stubStore struct {
	Store
	ident    *Identity
	findErrs []error
	calls    int
}

func (s *stubStore) FindBySubject(_ context.Context, _ id.SubjectID) (*Identity, error) {
	s.calls++
	if len(s.findErrs) > 0 {
		err := s.findErrs[0]
		s.findErrs = s.findErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.ident, nil
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	subject := id.NewSubjectID()
	tid := id.NewTenantID()
	stored, err := New(subject, "pat@example.com", roles.NewSet(roles.RoleMember), &tid, time.Now())
	require.NoError(t, err)
	okClaims := &Claims{SubjectID: subject, ExpiresAt: time.Now().Add(time.Hour)}

	t.Run("happy path", func(t *testing.T) {
		r := NewResolver(&stubVerifier{claims: okClaims}, &stubStore{ident: stored})
		ident, err := r.Resolve(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, subject, ident.SubjectID)
	})

	t.Run("invalid credential", func(t *testing.T) {
		verifyErr := dErrors.New(dErrors.CodeUnauthenticated, "invalid credential")
		store := &stubStore{ident: stored}
		r := NewResolver(&stubVerifier{err: verifyErr}, store)
		_, err := r.Resolve(ctx, "token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
		assert.Zero(t, store.calls, "store must not be consulted for bad credentials")
	})

	t.Run("valid credential without profile", func(t *testing.T) {
		store := &stubStore{findErrs: []error{sentinel.ErrNotFound}}
		r := NewResolver(&stubVerifier{claims: okClaims}, store)
		_, err := r.Resolve(ctx, "token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProfileNotFound))
	})

	t.Run("transient store fault is retried", func(t *testing.T) {
		unavailable := fmt.Errorf("read identities: %w", sentinel.ErrUnavailable)
		store := &stubStore{
			ident:    stored,
			findErrs: []error{unavailable, unavailable, nil},
		}
		r := NewResolver(&stubVerifier{claims: okClaims}, store)
		ident, err := r.Resolve(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, subject, ident.SubjectID)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("exhausted retries surface as store_unavailable", func(t *testing.T) {
		unavailable := fmt.Errorf("read identities: %w", sentinel.ErrUnavailable)
		store := &stubStore{findErrs: []error{unavailable, unavailable, unavailable}}
		r := NewResolver(&stubVerifier{claims: okClaims}, store)
		_, err := r.Resolve(ctx, "token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
		assert.Equal(t, 3, store.calls)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		store := &stubStore{findErrs: []error{sentinel.ErrNotFound}}
		r := NewResolver(&stubVerifier{claims: okClaims}, store)
		_, err := r.Resolve(ctx, "token")
		require.Error(t, err)
		assert.Equal(t, 1, store.calls)
	})
}

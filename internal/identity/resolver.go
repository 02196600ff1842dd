package identity

import (
	"context"
	"errors"
	"log/slog"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/retry"
	"shepherd/pkg/platform/sentinel"
)

// Store defines the persistence interface for identities.
// Error Contract: FindBySubject returns sentinel.ErrNotFound when no record
// exists and sentinel.ErrUnavailable (wrapped) on transient failures.
type Store interface {
	Save(ctx context.Context, ident *Identity) error
	FindBySubject(ctx context.Context, subjectID id.SubjectID) (*Identity, error)
	// UpdateRoles performs a compare-and-swap on Version and returns
	// sentinel.ErrConflict when the loaded version is stale.
	UpdateRoles(ctx context.Context, ident *Identity, expectedVersion int64) error
	Update(ctx context.Context, ident *Identity, expectedVersion int64) error
}

// Resolver turns an inbound session credential into a resolved Identity.
// It is read-only: verification plus a single store load, no side effects.
type Resolver struct {
	verifier CredentialVerifier
	store    Store
	retry    *retry.Policy
	logger   *slog.Logger
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets a logger for store fault reporting.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithRetryPolicy overrides the bounded retry applied around store reads.
func WithRetryPolicy(p *retry.Policy) ResolverOption {
	return func(r *Resolver) {
		if p != nil {
			r.retry = p
		}
	}
}

func NewResolver(verifier CredentialVerifier, store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		verifier: verifier,
		store:    store,
		retry:    retry.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve verifies the credential and loads the caller's Identity.
//
// Failure modes:
//   - unauthenticated: missing, malformed, or expired credential
//   - profile_not_found: valid credential for a never-provisioned account
//   - store_unavailable: identity store unreachable after bounded retries
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	claims, err := r.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}

	var ident *Identity
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		var loadErr error
		ident, loadErr = r.store.FindBySubject(ctx, claims.SubjectID)
		return loadErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeProfileNotFound, "no profile for subject "+claims.SubjectID.String())
		}
		r.logger.ErrorContext(ctx, "identity store unavailable",
			"subject_id", claims.SubjectID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "identity store unavailable")
	}
	return ident, nil
}

package keymanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

// ErrNotConfigured is returned when an identifier has no usable key pair.
// Callers must check for it before constructing a client; it is never a
// panic path.
var ErrNotConfigured = errors.New("credential not configured")

// Resolver maps an account identifier to its API key pair. Numeric
// identifiers are master accounts, everything else is a sub-account
// email. Resolution happens on every call; the store is local and the
// caller count is small, so there is no cache to invalidate.
type Resolver struct {
	store  Store
	logger *logrus.Entry
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		logger: logrus.WithField("component", "keymanager"),
	}
}

// Resolve returns a complete credential or ErrNotConfigured, never a
// pair with exactly one non-empty half.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (types.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return types.Credential{}, fmt.Errorf("%w: empty identifier", ErrNotConfigured)
	}

	if isNumeric(identifier) {
		return r.resolveMaster(ctx, identifier)
	}
	return r.resolveSubAccount(ctx, identifier)
}

func (r *Resolver) resolveMaster(ctx context.Context, userID string) (types.Credential, error) {
	records, err := r.store.MasterRecords(ctx, userID)
	if err != nil {
		return types.Credential{}, fmt.Errorf("credential store lookup failed for %s: %w", userID, err)
	}

	rec, ok := latestActive(records)
	if !ok {
		r.logger.WithField("identifier", userID).Debug("no active master credential")
		return types.Credential{}, ErrNotConfigured
	}
	return r.complete(rec, types.ScopeMaster)
}

func (r *Resolver) resolveSubAccount(ctx context.Context, email string) (types.Credential, error) {
	rec, err := r.store.SubAccountRecord(ctx, email)
	if err != nil {
		return types.Credential{}, fmt.Errorf("credential store lookup failed for %s: %w", email, err)
	}
	rec.Identifier = email
	return r.complete(rec, types.ScopeSubAccount)
}

func (r *Resolver) complete(rec Record, scope types.CredentialScope) (types.Credential, error) {
	cred := types.Credential{
		Identifier: rec.Identifier,
		APIKey:     strings.TrimSpace(rec.APIKey),
		APISecret:  strings.TrimSpace(rec.APISecret),
		Scope:      scope,
	}
	if !cred.IsConfigured() {
		return types.Credential{}, ErrNotConfigured
	}
	return cred, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

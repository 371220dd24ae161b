package keymanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

func TestResolveSubAccount(t *testing.T) {
	store := NewMemoryStore()
	store.PutSubAccount("sub1@example.com", Record{APIKey: "key1", APISecret: "secret1"})

	resolver := NewResolver(store)
	cred, err := resolver.Resolve(context.Background(), "sub1@example.com")
	require.NoError(t, err)

	assert.Equal(t, "sub1@example.com", cred.Identifier)
	assert.Equal(t, "key1", cred.APIKey)
	assert.Equal(t, "secret1", cred.APISecret)
	assert.Equal(t, types.ScopeSubAccount, cred.Scope)
}

func TestResolveMasterPicksLatestActive(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.PutMaster("42", Record{APIKey: "old", APISecret: "old-secret", Active: true, CreatedAt: base})
	store.PutMaster("42", Record{APIKey: "inactive", APISecret: "inactive-secret", Active: false, CreatedAt: base.Add(2 * time.Hour)})
	store.PutMaster("42", Record{APIKey: "new", APISecret: "new-secret", Active: true, CreatedAt: base.Add(time.Hour)})

	resolver := NewResolver(store)
	cred, err := resolver.Resolve(context.Background(), "42")
	require.NoError(t, err)

	// Last-created active record wins; the newer-but-inactive one never does.
	assert.Equal(t, "new", cred.APIKey)
	assert.Equal(t, types.ScopeMaster, cred.Scope)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	resolver := NewResolver(NewMemoryStore())

	_, err := resolver.Resolve(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = resolver.Resolve(context.Background(), "99")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// A credential with exactly one non-empty half must resolve to the
// not-configured sentinel, never to a partial pair.
func TestResolveTotality(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{"missing secret", Record{APIKey: "key"}},
		{"missing key", Record{APISecret: "secret"}},
		{"whitespace secret", Record{APIKey: "key", APISecret: "   "}},
		{"whitespace key", Record{APIKey: "\t", APISecret: "secret"}},
		{"both empty", Record{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.PutSubAccount("sub@example.com", tt.record)

			resolver := NewResolver(store)
			cred, err := resolver.Resolve(context.Background(), "sub@example.com")
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.Empty(t, cred.APIKey)
			assert.Empty(t, cred.APISecret)
		})
	}
}

func TestResolveEmptyIdentifier(t *testing.T) {
	resolver := NewResolver(NewMemoryStore())
	_, err := resolver.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type failingStore struct{}

func (failingStore) MasterRecords(ctx context.Context, userID string) ([]Record, error) {
	return nil, errors.New("store down")
}

func (failingStore) SubAccountRecord(ctx context.Context, email string) (Record, error) {
	return Record{}, errors.New("store down")
}

func TestResolveStoreFailureIsNotNotConfigured(t *testing.T) {
	resolver := NewResolver(failingStore{})
	_, err := resolver.Resolve(context.Background(), "sub@example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotConfigured))
}

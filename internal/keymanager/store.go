package keymanager

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/omsfleet/binance-gateway/pkg/vault"
)

// Record is one stored API key pair. Master accounts may accumulate
// several records over time; only active ones are candidates for
// resolution.
type Record struct {
	Identifier string
	APIKey     string
	APISecret  string
	Active     bool
	CreatedAt  time.Time
}

// Store is the credential backend. The resolver only reads; writes happen
// through separate settings endpoints outside this service.
type Store interface {
	// MasterRecords returns every stored record for a numeric master id,
	// in no particular order. Empty slice when none exist.
	MasterRecords(ctx context.Context, userID string) ([]Record, error)
	// SubAccountRecord returns the record for a sub-account email, or a
	// zero Record when none exists.
	SubAccountRecord(ctx context.Context, email string) (Record, error)
}

// MemoryStore is an in-process Store for tests and standalone runs.
type MemoryStore struct {
	mu      sync.RWMutex
	masters map[string][]Record
	subs    map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		masters: make(map[string][]Record),
		subs:    make(map[string]Record),
	}
}

// PutMaster appends a master record for a numeric user id.
func (s *MemoryStore) PutMaster(userID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Identifier = userID
	s.masters[userID] = append(s.masters[userID], rec)
}

// PutSubAccount sets the record for a sub-account email.
func (s *MemoryStore) PutSubAccount(email string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Identifier = email
	s.subs[email] = rec
}

// MasterRecords implements Store.
func (s *MemoryStore) MasterRecords(ctx context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.masters[userID]
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// SubAccountRecord implements Store.
func (s *MemoryStore) SubAccountRecord(ctx context.Context, email string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs[email], nil
}

// VaultStore backs the credential store with Vault KV v2. One entry per
// identifier; the last write wins by construction, which satisfies the
// most-recently-created policy without version listing.
type VaultStore struct {
	client *vault.Client
}

// NewVaultStore wraps a connected Vault client.
func NewVaultStore(client *vault.Client) *VaultStore {
	return &VaultStore{client: client}
}

func (s *VaultStore) record(identifier string) (Record, error) {
	fields, err := s.client.GetAccountKeys(identifier)
	if err != nil {
		return Record{}, err
	}
	if fields == nil {
		return Record{}, nil
	}
	active := true
	if v, ok := fields["active"]; ok {
		active, _ = strconv.ParseBool(v)
	}
	return Record{
		Identifier: identifier,
		APIKey:     fields["api_key"],
		APISecret:  fields["secret_key"],
		Active:     active,
	}, nil
}

// MasterRecords implements Store.
func (s *VaultStore) MasterRecords(ctx context.Context, userID string) ([]Record, error) {
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	if rec.APIKey == "" && rec.APISecret == "" {
		return nil, nil
	}
	return []Record{rec}, nil
}

// SubAccountRecord implements Store.
func (s *VaultStore) SubAccountRecord(ctx context.Context, email string) (Record, error) {
	return s.record(email)
}

// latestActive picks the most-recently-created active record. Multiple
// active rows are not an error; last writer wins.
func latestActive(records []Record) (Record, bool) {
	var active []Record
	for _, r := range records {
		if r.Active {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return Record{}, false
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active[len(active)-1], true
}

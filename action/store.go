package action

import (
	"context"
	"sync"

	"github.com/tbxark/actionblock/types"
)

// RecordStore is the durable, append-only key-value store of completed block
// instances. Put never overwrites: it reports false when the key exists.
type RecordStore interface {
	Get(ctx context.Context, key types.InstanceKey) (*types.Record, bool, error)
	Put(ctx context.Context, rec *types.Record) (bool, error)
	// Scan visits records newest first until fn returns false.
	Scan(ctx context.Context, fn func(rec *types.Record) bool) error
}

// Preferences holds the few values that intentionally outlive a single
// conversation, such as the verified phone number.
type Preferences interface {
	GetPreference(ctx context.Context, name string) (string, bool, error)
	SetPreference(ctx context.Context, name, value string) error
}

const (
	PrefVerifiedPhone     = "verified_phone"
	PrefPreferredLanguage = "preferred_language"
)

// MemoryStore is an in-memory implementation for testing and local usage.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.InstanceKey]*types.Record
	order   []types.InstanceKey
	prefs   map[string]string
}

var (
	_ RecordStore = (*MemoryStore)(nil)
	_ Preferences = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[types.InstanceKey]*types.Record{},
		prefs:   map[string]string{},
	}
}

func (m *MemoryStore) Get(ctx context.Context, key types.InstanceKey) (*types.Record, bool, error) {
	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (m *MemoryStore) Put(ctx context.Context, rec *types.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.Key]; exists {
		return false, nil
	}
	cp := *rec
	m.records[rec.Key] = &cp
	m.order = append(m.order, rec.Key)
	return true, nil
}

func (m *MemoryStore) Scan(ctx context.Context, fn func(rec *types.Record) bool) error {
	m.mu.RLock()
	snapshot := make([]types.Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		snapshot = append(snapshot, *m.records[m.order[i]])
	}
	m.mu.RUnlock()
	for i := range snapshot {
		if !fn(&snapshot[i]) {
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) GetPreference(ctx context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	v, ok := m.prefs[name]
	m.mu.RUnlock()
	return v, ok, nil
}

func (m *MemoryStore) SetPreference(ctx context.Context, name, value string) error {
	m.mu.Lock()
	m.prefs[name] = value
	m.mu.Unlock()
	return nil
}

package history

import (
	"context"
	"sync"

	"github.com/freewebtopdf/uerename/internal/domain"
)

// MemoryStore keeps history for the lifetime of the process
type MemoryStore struct {
	mu      sync.RWMutex
	entries []domain.SessionSummary
}

// NewMemoryStore creates an empty in-memory history
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Record(ctx context.Context, summary domain.SessionSummary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, summary)
	return nil
}

func (m *MemoryStore) LastName(ctx context.Context, root string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := lastName(m.entries, root)
	return name, ok, nil
}

func (m *MemoryStore) Entries(ctx context.Context, root string) ([]domain.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filter(m.entries, root), nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return healthy("In-memory history is operational", map[string]any{
		"backend": BackendMemory,
		"entries": len(m.entries),
	})
}

func (m *MemoryStore) Close() error { return nil }

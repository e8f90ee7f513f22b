package repo

import (
	"context"
	"sync"

	"makemyoutfit/internal/domain"
)

// MemoryHistoryKeep is how many entries each namespace retains.
const MemoryHistoryKeep = 50

// HistoryRepositoryMemory keeps recent history in process. It backs the
// service when no DATABASE_URL is configured.
type HistoryRepositoryMemory struct {
	mu      sync.RWMutex
	entries map[string][]domain.HistoryEntry
}

func NewMemoryHistoryRepository() *HistoryRepositoryMemory {
	return &HistoryRepositoryMemory{entries: make(map[string][]domain.HistoryEntry)}
}

func (r *HistoryRepositoryMemory) Append(ctx context.Context, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append([]domain.HistoryEntry{entry}, r.entries[entry.Namespace]...)
	if len(list) > MemoryHistoryKeep {
		list = list[:MemoryHistoryKeep]
	}
	r.entries[entry.Namespace] = list
	return nil
}

func (r *HistoryRepositoryMemory) ListRecent(ctx context.Context, namespace string, limit int) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.entries[namespace]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]domain.HistoryEntry, len(list))
	copy(out, list)
	return out, nil
}

var _ domain.HistoryRepository = (*HistoryRepositoryMemory)(nil)

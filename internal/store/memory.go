package store

import (
	"context"
	"sync"

	"github.com/fpang/profile-agent/internal/jobs"
)

// MemoryStore keeps reports in process memory, dropping the oldest once
// more than limit are held.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	order   []string
	reports map[string]jobs.Report
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore returns a MemoryStore holding at most limit reports. A
// limit of zero or less keeps everything.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit, reports: make(map[string]jobs.Report)}
}

func (m *MemoryStore) Put(ctx context.Context, r jobs.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.RunID]; !ok {
		m.order = append(m.order, r.RunID)
	}
	m.reports[r.RunID] = r
	for m.limit > 0 && len(m.order) > m.limit {
		delete(m.reports, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, runID string) (*jobs.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[runID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

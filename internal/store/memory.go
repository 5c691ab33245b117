package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pos-checkout/internal/models"
)

type memoryEntry struct {
	pending   models.PendingSettlement
	claimed   bool
	expiresAt time.Time
}

// Memory is a process-local pending settlement store for development.
// Records do not survive a restart.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) SavePending(ctx context.Context, p *models.PendingSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live(p.Reference) != nil {
		return fmt.Errorf("pending settlement %s: %w", p.Reference, models.ErrAlreadyExists)
	}
	m.entries[p.Reference] = &memoryEntry{pending: *p, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) LoadPending(ctx context.Context, reference string) (*models.PendingSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(reference)
	if e == nil {
		return nil, models.ErrNotFound
	}
	p := e.pending
	return &p, nil
}

func (m *Memory) ClaimGuard(ctx context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(reference)
	if e == nil {
		return false, models.ErrNotFound
	}
	if e.claimed {
		return false, nil
	}
	e.claimed = true
	return true, nil
}

func (m *Memory) DeletePending(ctx context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, reference)
	return nil
}

// Ping always succeeds
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) live(reference string) *memoryEntry {
	e, ok := m.entries[reference]
	if !ok {
		return nil
	}
	if m.ttl > 0 && !m.now().Before(e.expiresAt) {
		delete(m.entries, reference)
		return nil
	}
	return e
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
)

const DefaultMemoryUsageCapacity = 10_000

// MemoryUsageStore keeps the most recent usage logs in a fixed-size ring.
// Older entries are overwritten, and everything is lost on restart.
type MemoryUsageStore struct {
	mu   sync.RWMutex
	ring []domain.UsageLog
	next int
	size int
}

// NewMemoryUsageStore retains at most capacity entries. Zero or less means
// DefaultMemoryUsageCapacity.
func NewMemoryUsageStore(capacity int) *MemoryUsageStore {
	if capacity <= 0 {
		capacity = DefaultMemoryUsageCapacity
	}
	return &MemoryUsageStore{ring: make([]domain.UsageLog, capacity)}
}

func (s *MemoryUsageStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.next] = usage
	s.next = (s.next + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}
	return nil
}

func (s *MemoryUsageStore) Capacity() int {
	return len(s.ring)
}

// Summary covers retained entries only.
func (s *MemoryUsageStore) Summary(ctx context.Context, since time.Time) (UsageSummary, error) {
	if err := ctx.Err(); err != nil {
		return UsageSummary{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum UsageSummary
	s.each(func(u domain.UsageLog) bool {
		if !u.CreatedAt.Before(since) {
			sum.add(u)
		}
		return true
	})
	return sum, nil
}

func (s *MemoryUsageStore) Recent(ctx context.Context, limit int) ([]domain.UsageLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UsageLog, 0, min(max(limit, 0), s.size))
	s.each(func(u domain.UsageLog) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, u)
		return true
	})
	return out, nil
}

// each visits retained entries newest first until fn returns false.
func (s *MemoryUsageStore) each(fn func(domain.UsageLog) bool) {
	for i := 1; i <= s.size; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		if !fn(s.ring[idx]) {
			return
		}
	}
}

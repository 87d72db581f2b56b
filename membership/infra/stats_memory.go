package infra

import (
	"context"
	"sync"

	"membership-gateway/membership/domain"
)

// MemoryStatsStore é uma implementação simples em memória.
// Não faz expiração; os contadores vivem enquanto o processo viver.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   int64
	cached  int64
	byOut   map[domain.Outcome]int64
	byGroup map[string]int64

	trackGroups bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackGroups(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackGroups = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOut:   make(map[domain.Outcome]int64),
		byGroup: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.CheckEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if ev.Cached {
		s.cached++
	}
	s.byOut[ev.Outcome]++
	if s.trackGroups && ev.Query.GroupID != "" {
		s.byGroup[ev.Query.GroupID]++
	}
	return nil
}

// Snapshot implementa domain.StatsSnapshotter.
func (s *MemoryStatsStore) Snapshot(context.Context) (domain.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.Outcome]int64, len(s.byOut))
	for k, v := range s.byOut {
		out[k] = v
	}
	return domain.Counters{Total: s.total, Cached: s.cached, Outcomes: out}, nil
}

func (s *MemoryStatsStore) ByGroup() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byGroup))
	for k, v := range s.byGroup {
		out[k] = v
	}
	return out
}

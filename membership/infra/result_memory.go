package infra

import (
	"context"
	"time"

	"membership-gateway/membership/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryResultStore guarda resultados em memória num LRU com TTL.
// Quando cheio, descarta o menos usado. TTL 0 não expira.
type MemoryResultStore struct {
	lru *expirable.LRU[domain.MembershipQuery, domain.MembershipResult]
}

type memoryResultConfig struct {
	ttl        time.Duration
	maxEntries int
}

type MemoryResultOption func(*memoryResultConfig)

func WithResultTTL(d time.Duration) MemoryResultOption {
	return func(c *memoryResultConfig) { c.ttl = d }
}

// WithMaxEntries limita o número de entradas. 0 = sem limite.
func WithMaxEntries(n int) MemoryResultOption {
	return func(c *memoryResultConfig) { c.maxEntries = n }
}

func NewMemoryResultStore(opts ...MemoryResultOption) *MemoryResultStore {
	cfg := memoryResultConfig{
		ttl:        10 * time.Minute,
		maxEntries: 10000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxEntries < 0 {
		cfg.maxEntries = 0
	}
	// ttl <= 0 no expirable significa "não expira".
	return &MemoryResultStore{
		lru: expirable.NewLRU[domain.MembershipQuery, domain.MembershipResult](cfg.maxEntries, nil, cfg.ttl),
	}
}

func (s *MemoryResultStore) Get(_ context.Context, q domain.MembershipQuery) (domain.MembershipResult, bool, error) {
	r, ok := s.lru.Get(q)
	return r, ok, nil
}

func (s *MemoryResultStore) Put(_ context.Context, q domain.MembershipQuery, r domain.MembershipResult) error {
	s.lru.Add(q, r)
	return nil
}

func (s *MemoryResultStore) Purge(context.Context) error {
	s.lru.Purge()
	return nil
}

// Len conta só as entradas ainda válidas.
func (s *MemoryResultStore) Len() int {
	return len(s.lru.Keys())
}

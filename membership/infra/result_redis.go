package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"membership-gateway/membership/domain"

	"github.com/redis/go-redis/v9"
)

// RedisResultStore guarda resultados no Redis, compartilhados entre instâncias.
// A expiração fica com o próprio Redis (SET com EX).
type RedisResultStore struct {
	rdb redis.UniversalClient

	prefix string
	ttl    time.Duration
}

type RedisResultOption func(*RedisResultStore)

func WithResultPrefix(prefix string) RedisResultOption {
	return func(s *RedisResultStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithRedisResultTTL(d time.Duration) RedisResultOption {
	return func(s *RedisResultStore) { s.ttl = d }
}

func NewRedisResultStore(rdb redis.UniversalClient, opts ...RedisResultOption) *RedisResultStore {
	s := &RedisResultStore{
		rdb:    rdb,
		prefix: "membership:cache",
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// formato gravado no Redis; separado do domínio para poder evoluir.
type redisResult struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Nickname  string `json:"nickname"`
	Member    bool   `json:"member"`
}

func (s *RedisResultStore) key(q domain.MembershipQuery) string {
	return s.prefix + ":" + q.Key()
}

func (s *RedisResultStore) Get(ctx context.Context, q domain.MembershipQuery) (domain.MembershipResult, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MembershipResult{}, false, nil
	}
	if err != nil {
		return domain.MembershipResult{}, false, fmt.Errorf("redis get: %w", err)
	}

	var rec redisResult
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.MembershipResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	return domain.MembershipResult{
		Profile:  domain.UserProfile{LastName: rec.LastName, FirstName: rec.FirstName, Nickname: rec.Nickname},
		IsMember: rec.Member,
	}, true, nil
}

func (s *RedisResultStore) Put(ctx context.Context, q domain.MembershipQuery, r domain.MembershipResult) error {
	raw, err := json.Marshal(redisResult{
		LastName:  r.Profile.LastName,
		FirstName: r.Profile.FirstName,
		Nickname:  r.Profile.Nickname,
		Member:    r.IsMember,
	})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	// ttl 0 = sem expiração
	if err := s.rdb.Set(ctx, s.key(q), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Purge remove apenas as chaves com o prefixo deste store.
func (s *RedisResultStore) Purge(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

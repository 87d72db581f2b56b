package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"membership-gateway/membership/domain"

	"github.com/redis/go-redis/v9"
)

const (
	statsFieldTotal  = "total"
	statsFieldCached = "cached"
)

// RedisStatsStore agrega contadores em hashes do Redis:
//
//	<prefix>:total              total, cached e um campo por outcome (sem TTL)
//	<prefix>:minute:<yyyymmddhhmm>  outcomes por minuto
//	<prefix>:group:<group_id>   outcomes por grupo, se habilitado
//
// As séries por minuto e por grupo expiram em seriesTTL.
type RedisStatsStore struct {
	rdb          redis.UniversalClient
	prefix       string
	seriesTTL    time.Duration
	minuteSeries bool
	trackGroups  bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.seriesTTL = d }
}

func WithStatsMinuteSeries(enabled bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.minuteSeries = enabled }
}

func WithStatsTrackGroups(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackGroups = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:          rdb,
		prefix:       "membership:stats",
		seriesTTL:    24 * time.Hour,
		minuteSeries: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.CheckEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	outcome := string(ev.Outcome)

	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		totals := s.key("total")
		p.HIncrBy(ctx, totals, statsFieldTotal, 1)
		p.HIncrBy(ctx, totals, outcome, 1)
		if ev.Cached {
			p.HIncrBy(ctx, totals, statsFieldCached, 1)
		}
		if s.minuteSeries {
			s.bumpSeries(ctx, p, s.key("minute", at.UTC().Format("200601021504")), outcome)
		}
		if g := strings.TrimSpace(ev.Query.GroupID); s.trackGroups && g != "" {
			s.bumpSeries(ctx, p, s.key("group", g), outcome)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) bumpSeries(ctx context.Context, p redis.Pipeliner, key, field string) {
	p.HIncrBy(ctx, key, field, 1)
	if s.seriesTTL > 0 {
		p.Expire(ctx, key, s.seriesTTL)
	}
}

// Snapshot lê o hash de totais. Implementa domain.StatsSnapshotter.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.Counters, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key("total")).Result()
	if err != nil {
		return domain.Counters{}, fmt.Errorf("read stats: %w", err)
	}

	c := domain.Counters{Outcomes: make(map[domain.Outcome]int64, len(fields))}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Counters{}, fmt.Errorf("read stats field %q: %w", field, err)
		}
		switch field {
		case statsFieldTotal:
			c.Total = n
		case statsFieldCached:
			c.Cached = n
		default:
			c.Outcomes[domain.Outcome(field)] = n
		}
	}
	return c, nil
}

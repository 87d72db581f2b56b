package infra

import (
	"context"
	"testing"
	"time"

	"membership-gateway/membership/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsOutcomes(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackGroups(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeMember}))
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeMember, Cached: true}))
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryB, Outcome: domain.OutcomeUserNotFound}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, snap.Total)
	assert.EqualValues(t, 1, snap.Cached)
	assert.EqualValues(t, 2, snap.Outcomes[domain.OutcomeMember])
	assert.EqualValues(t, 1, snap.Outcomes[domain.OutcomeUserNotFound])
	assert.EqualValues(t, 3, s.ByGroup()["testGroup"])
}

func TestMemoryStatsStore_SnapshotIsACopy(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Outcome: domain.OutcomeNotMember}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	snap.Outcomes[domain.OutcomeNotMember] = 100

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.Outcomes[domain.OutcomeNotMember])
}

func TestRedisStatsStore_RecordWritesHashes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("stats"), WithStatsTTL(time.Hour), WithStatsTrackGroups(true))
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeMember, Cached: true, At: at}))
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeInvalidParameters, At: at}))

	assert.Equal(t, "1", mr.HGet("stats:total", "member"))
	assert.Equal(t, "1", mr.HGet("stats:total", "invalid_parameters"))
	assert.Equal(t, "1", mr.HGet("stats:total", "cached"))
	assert.Equal(t, "2", mr.HGet("stats:total", "total"))
	assert.Equal(t, "1", mr.HGet("stats:minute:202405011230", "member"))
	assert.Equal(t, time.Hour, mr.TTL("stats:minute:202405011230"))
	assert.Equal(t, "1", mr.HGet("stats:group:testGroup", "member"))
}

func TestRedisStatsStore_WithoutMinuteSeries(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsMinuteSeries(false))

	require.NoError(t, s.Record(context.Background(), domain.CheckEvent{Outcome: domain.OutcomeNotMember}))

	assert.Equal(t, "1", mr.HGet("membership:stats:total", "not_member"))
	assert.Len(t, mr.Keys(), 1)
}

func TestRedisStatsStore_SnapshotReadsTotals(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("stats"))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeMember}))
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryA, Outcome: domain.OutcomeMember, Cached: true}))
	require.NoError(t, s.Record(ctx, domain.CheckEvent{Query: queryB, Outcome: domain.OutcomeUpstreamError}))

	snap, err := s.Snapshot(ctx)

	require.NoError(t, err)
	assert.EqualValues(t, 3, snap.Total)
	assert.EqualValues(t, 1, snap.Cached)
	assert.Equal(t, map[domain.Outcome]int64{
		domain.OutcomeMember:        2,
		domain.OutcomeUpstreamError: 1,
	}, snap.Outcomes)
}

func TestRedisStatsStore_SnapshotOfEmptyStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb)

	snap, err := s.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Empty(t, snap.Outcomes)
}

func TestRedisStatsStore_SnapshotFailsWhenRedisIsDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb)
	mr.Close()

	_, err := s.Snapshot(context.Background())

	assert.Error(t, err)
}

package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"membership-gateway/membership/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore é um ResultStore mínimo para os testes deste pacote.
type mapStore struct {
	mu      sync.Mutex
	entries map[domain.MembershipQuery]domain.MembershipResult
	getErr  error
	putErr  error
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[domain.MembershipQuery]domain.MembershipResult)}
}

func (s *mapStore) Get(_ context.Context, q domain.MembershipQuery) (domain.MembershipResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.MembershipResult{}, false, s.getErr
	}
	r, ok := s.entries[q]
	return r, ok, nil
}

func (s *mapStore) Put(_ context.Context, q domain.MembershipQuery, r domain.MembershipResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[q] = r
	return nil
}

func (s *mapStore) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.MembershipQuery]domain.MembershipResult)
	return nil
}

type countingChecker struct {
	calls atomic.Int32
	gate  chan struct{}
	res   domain.MembershipResult
	err   error
}

func (c *countingChecker) Check(ctx context.Context, q domain.MembershipQuery, _ string) (domain.MembershipResult, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.res, c.err
}

var testResult = domain.MembershipResult{Profile: testProfile, IsMember: true}

func TestResponseCache_SecondCheckIsServedFromCache(t *testing.T) {
	next := &countingChecker{res: testResult}
	c := NewResponseCache(newMapStore(), next, nil)
	ctx := context.Background()

	r1, cached1, err := c.Check(ctx, testQuery, "testToken")
	require.NoError(t, err)
	assert.False(t, cached1)

	r2, cached2, err := c.Check(ctx, testQuery, "anotherToken")
	require.NoError(t, err)
	assert.True(t, cached2)

	assert.Equal(t, r1, r2)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestResponseCache_ErrorsAreNotCached(t *testing.T) {
	next := &countingChecker{err: domain.NewUserNotFound("testUser")}
	store := newMapStore()
	c := NewResponseCache(store, next, nil)
	ctx := context.Background()

	_, _, err := c.Check(ctx, testQuery, "testToken")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	_, _, err = c.Check(ctx, testQuery, "testToken")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.EqualValues(t, 2, next.calls.Load())
	_, ok := c.Get(ctx, testQuery)
	assert.False(t, ok)
}

func TestResponseCache_GetIsIdempotent(t *testing.T) {
	c := NewResponseCache(newMapStore(), &countingChecker{}, nil)
	ctx := context.Background()
	c.Put(ctx, testQuery, testResult)

	for i := 0; i < 5; i++ {
		r, ok := c.Get(ctx, testQuery)
		require.True(t, ok)
		assert.Equal(t, testResult, r)
	}
}

func TestResponseCache_InvalidateAll(t *testing.T) {
	next := &countingChecker{res: testResult}
	c := NewResponseCache(newMapStore(), next, nil)
	ctx := context.Background()

	_, _, err := c.Check(ctx, testQuery, "testToken")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateAll(ctx))

	_, ok := c.Get(ctx, testQuery)
	assert.False(t, ok)

	_, cached, err := c.Check(ctx, testQuery, "testToken")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestResponseCache_ConcurrentIdenticalQueriesShareOneFlight(t *testing.T) {
	next := &countingChecker{res: testResult, gate: make(chan struct{})}
	c := NewResponseCache(newMapStore(), next, nil)

	const callers = 8
	results := make([]domain.MembershipResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = c.Check(context.Background(), testQuery, "testToken")
		}()
	}

	// dá tempo para todos entrarem no voo antes de liberar o upstream;
	// quem chegar depois encontra o cache preenchido, o que também vale.
	time.Sleep(30 * time.Millisecond)
	close(next.gate)
	wg.Wait()

	assert.EqualValues(t, 1, next.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, testResult, results[i])
	}
}

func TestResponseCache_DistinctQueriesRunIndependently(t *testing.T) {
	gate := make(chan struct{})
	next := &countingChecker{res: testResult, gate: gate}
	c := NewResponseCache(newMapStore(), next, nil)

	other := domain.MembershipQuery{UserID: "otherUser", GroupID: "testGroup"}

	var wg sync.WaitGroup
	wg.Add(2)
	for _, q := range []domain.MembershipQuery{testQuery, other} {
		q := q
		go func() {
			defer wg.Done()
			_, _, err := c.Check(context.Background(), q, "testToken")
			assert.NoError(t, err)
		}()
	}

	// as duas queries precisam chegar ao upstream ao mesmo tempo
	require.Eventually(t, func() bool { return next.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()
}

func TestResponseCache_CallerCancellationDoesNotBreakFlight(t *testing.T) {
	gate := make(chan struct{})
	next := &countingChecker{res: testResult, gate: gate}
	store := newMapStore()
	c := NewResponseCache(store, next, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := c.Check(ctx, testQuery, "testToken")
		done <- err
	}()

	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(gate)
	require.Eventually(t, func() bool {
		_, ok := c.Get(context.Background(), testQuery)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestResponseCache_StoreFailuresAreBestEffort(t *testing.T) {
	store := newMapStore()
	store.getErr = errors.New("redis down")
	store.putErr = errors.New("redis down")
	next := &countingChecker{res: testResult}
	c := NewResponseCache(store, next, nil)

	r, cached, err := c.Check(context.Background(), testQuery, "testToken")

	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, testResult, r)
}

// lateStore erra o primeiro Get e acerta os seguintes, como quando outro voo
// grava o resultado entre a consulta inicial e o início do voo.
type lateStore struct {
	*mapStore
	gets atomic.Int32
}

func (s *lateStore) Get(ctx context.Context, q domain.MembershipQuery) (domain.MembershipResult, bool, error) {
	if s.gets.Add(1) == 1 {
		return domain.MembershipResult{}, false, nil
	}
	return s.mapStore.Get(ctx, q)
}

func TestResponseCache_HitFoundInsideFlightIsReportedAsCached(t *testing.T) {
	store := &lateStore{mapStore: newMapStore()}
	store.entries[testQuery] = testResult
	next := &countingChecker{res: testResult}
	c := NewResponseCache(store, next, nil)

	r, cached, err := c.Check(context.Background(), testQuery, "testToken")

	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, testResult, r)
	assert.EqualValues(t, 0, next.calls.Load())
}

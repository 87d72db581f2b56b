package application

import (
	"context"

	"membership-gateway/membership/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Checker é a orquestração que o cache memoiza (normalmente Service).
type Checker interface {
	Check(ctx context.Context, q domain.MembershipQuery, accessToken string) (domain.MembershipResult, error)
}

// ResponseCache memoiza Checker.Check por query. O token de acesso não faz
// parte da chave.
//
// Requests concorrentes para a mesma query ainda não cacheada compartilham uma
// única orquestração (singleflight). Queries diferentes seguem em paralelo.
// Erros nunca são guardados.
type ResponseCache struct {
	store  domain.ResultStore
	next   Checker
	logger *zap.Logger
	group  singleflight.Group
}

func NewResponseCache(store domain.ResultStore, next Checker, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{store: store, next: next, logger: logger}
}

// Get devolve o resultado guardado. Falha do store conta como miss.
func (c *ResponseCache) Get(ctx context.Context, q domain.MembershipQuery) (domain.MembershipResult, bool) {
	if c.store == nil {
		return domain.MembershipResult{}, false
	}
	r, ok, err := c.store.Get(ctx, q)
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", q.Key()), zap.Error(err))
		return domain.MembershipResult{}, false
	}
	return r, ok
}

func (c *ResponseCache) Put(ctx context.Context, q domain.MembershipQuery, r domain.MembershipResult) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, q, r); err != nil {
		c.logger.Warn("cache put failed", zap.String("key", q.Key()), zap.Error(err))
	}
}

// InvalidateAll esvazia o cache (reset administrativo).
func (c *ResponseCache) InvalidateAll(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Purge(ctx)
}

// Check devolve o resultado da query, do cache ou de uma nova orquestração.
// O bool indica se veio do cache.
func (c *ResponseCache) Check(ctx context.Context, q domain.MembershipQuery, accessToken string) (domain.MembershipResult, bool, error) {
	if r, ok := c.Get(ctx, q); ok {
		return r, true, nil
	}

	// o voo compartilhado não pode morrer porque o primeiro chamador desistiu.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(q.Key(), func() (any, error) {
		// outro voo pode ter terminado entre o Get acima e este ponto.
		if r, ok := c.Get(flightCtx, q); ok {
			return flightResult{result: r, cached: true}, nil
		}
		r, err := c.next.Check(flightCtx, q, accessToken)
		if err != nil {
			return nil, err
		}
		c.Put(flightCtx, q, r)
		return flightResult{result: r}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.MembershipResult{}, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.result, fr.cached, nil
	case <-ctx.Done():
		return domain.MembershipResult{}, false, ctx.Err()
	}
}

type flightResult struct {
	result domain.MembershipResult
	cached bool
}

package application

import (
	"context"

	"membership-gateway/membership/domain"

	"golang.org/x/sync/errgroup"
)

// Service orquestra as duas chamadas à API externa para uma query.
//
// As chamadas rodam em paralelo e o resultado só existe se ambas derem certo.
// Um erro de uma chamada não cancela a outra: ela é aguardada e descartada.
type Service struct {
	Upstream domain.Upstream
}

func (s Service) Check(ctx context.Context, q domain.MembershipQuery, accessToken string) (domain.MembershipResult, error) {
	var (
		profile   domain.UserProfile
		isMember  bool
		userErr   error
		memberErr error
	)

	// sem errgroup.WithContext: a falha de um lado não deve cancelar o outro.
	var g errgroup.Group
	g.Go(func() error {
		profile, userErr = s.Upstream.FetchUser(ctx, q.UserID, accessToken)
		return nil
	})
	g.Go(func() error {
		isMember, memberErr = s.Upstream.CheckMembership(ctx, q.UserID, q.GroupID, accessToken)
		return nil
	})
	_ = g.Wait()

	// falha dupla: o erro da busca do usuário tem prioridade.
	if userErr != nil {
		return domain.MembershipResult{}, userErr
	}
	if memberErr != nil {
		return domain.MembershipResult{}, memberErr
	}
	return domain.MembershipResult{Profile: profile, IsMember: isMember}, nil
}

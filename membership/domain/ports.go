package domain

import "context"

// Upstream é o cliente da API externa (as duas operações usadas aqui).
//
// Erros conhecidos do payload voltam como Error; o resto é falha de transporte.
type Upstream interface {
	FetchUser(ctx context.Context, userID, accessToken string) (UserProfile, error)
	CheckMembership(ctx context.Context, userID, groupID, accessToken string) (bool, error)
}

// ResultStore guarda resultados por query. A política de expiração (TTL,
// tamanho máximo) é da implementação.
type ResultStore interface {
	Get(ctx context.Context, q MembershipQuery) (MembershipResult, bool, error)
	Put(ctx context.Context, q MembershipQuery, r MembershipResult) error
	Purge(ctx context.Context) error
}

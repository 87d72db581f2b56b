package domain

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomeMember            Outcome = "member"
	OutcomeNotMember         Outcome = "not_member"
	OutcomeUserNotFound      Outcome = "user_not_found"
	OutcomeInvalidParameters Outcome = "invalid_parameters"
	OutcomeUpstreamError     Outcome = "upstream_error"
)

// OutcomeOf classifica o resultado de uma verificação para estatísticas.
func OutcomeOf(r MembershipResult, err error) Outcome {
	if err == nil {
		if r.IsMember {
			return OutcomeMember
		}
		return OutcomeNotMember
	}
	de, ok := AsError(err)
	if !ok {
		return OutcomeUpstreamError
	}
	switch de.(type) {
	case *UserNotFoundError:
		return OutcomeUserNotFound
	case *InvalidParametersError:
		return OutcomeInvalidParameters
	}
	return OutcomeUpstreamError
}

// CheckEvent registra uma verificação atendida pela camada HTTP.
//
// Observação: GroupID tem cardinalidade alta; o store decide se agrega por grupo.
type CheckEvent struct {
	Query   MembershipQuery
	Outcome Outcome
	Cached  bool
	At      time.Time
}

// StatsStore persiste estatísticas. É best-effort: erro não derruba a request.
type StatsStore interface {
	Record(ctx context.Context, ev CheckEvent) error
}

type Counters struct {
	Total    int64             `json:"total"`
	Cached   int64             `json:"cached"`
	Outcomes map[Outcome]int64 `json:"outcomes"`
}

// StatsSnapshotter é implementado por stores que conseguem devolver os
// contadores agregados.
type StatsSnapshotter interface {
	Snapshot(ctx context.Context) (Counters, error)
}

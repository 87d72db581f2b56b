package domain

import (
	"net/url"
	"strings"
)

// MembershipQuery identifica uma verificação. É comparável por valor e por isso
// serve diretamente como chave de cache.
type MembershipQuery struct {
	UserID  string
	GroupID string
}

// Key serializa a query em uma string sem ambiguidade (ids podem conter ':').
func (q MembershipQuery) Key() string {
	return url.QueryEscape(q.UserID) + ":" + url.QueryEscape(q.GroupID)
}

// Normalize remove espaços nas bordas dos ids.
func (q MembershipQuery) Normalize() MembershipQuery {
	return MembershipQuery{
		UserID:  strings.TrimSpace(q.UserID),
		GroupID: strings.TrimSpace(q.GroupID),
	}
}

// UserProfile é o que a API externa devolve para um usuário.
type UserProfile struct {
	LastName  string
	FirstName string
	Nickname  string
}

// MembershipResult é a saída de uma orquestração bem-sucedida e também o valor
// guardado em cache.
type MembershipResult struct {
	Profile  UserProfile
	IsMember bool
}

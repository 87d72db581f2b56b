package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidParameters = errors.New("invalid parameters")
)

// Error é o conjunto fechado de erros de domínio. O método marcador não é
// exportado: só os tipos deste pacote o implementam.
//
// Qualquer outro erro vindo do cliente externo é falha de transporte.
type Error interface {
	error
	domainError()
}

// UserNotFoundError: a API externa devolveu zero usuários para o id.
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string        { return fmt.Sprintf("User not found: %s", e.UserID) }
func (e *UserNotFoundError) Is(target error) bool { return target == ErrUserNotFound }
func (*UserNotFoundError) domainError()           {}

// InvalidParametersError carrega a mensagem da API externa sem reinterpretar.
type InvalidParametersError struct {
	Message string
}

func (e *InvalidParametersError) Error() string        { return e.Message }
func (e *InvalidParametersError) Is(target error) bool { return target == ErrInvalidParameters }
func (*InvalidParametersError) domainError()           {}

func NewUserNotFound(userID string) error { return &UserNotFoundError{UserID: userID} }

func NewInvalidParameters(message string) error { return &InvalidParametersError{Message: message} }

// AsError extrai o erro de domínio de uma cadeia de erros, se houver.
func AsError(err error) (Error, bool) {
	var de Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

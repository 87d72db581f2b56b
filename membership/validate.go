package membership

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type checkRequest struct {
	UserID  string `json:"user_id" validate:"notblank,min=1,max=32"`
	GroupID string `json:"group_id" validate:"notblank,min=1,max=32"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	// mensagens usam o nome do campo JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// validationMessage transforma o erro do validator em texto para o cliente.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "notblank":
			msgs = append(msgs, fmt.Sprintf("%s must not be blank", fe.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s size must be between 1 and 32", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate

	usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)
)

// ValidationError é a falha de validação de entrada, já com mensagem legível.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validator devolve instância compartilhada com as regras do domínio registradas.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
		})
		instance = v
	})
	return instance
}

// ValidateStruct valida payload e resume o primeiro erro em mensagem legível.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return invalid(field, field+" obrigatório")
		case "email":
			return invalid(field, "email inválido")
		case "username":
			return invalid(field, "username deve ter 3 a 32 caracteres (letras, números, . _ -)")
		case "min", "gte":
			return invalid(field, fmt.Sprintf("%s abaixo do mínimo (%s)", field, fe.Param()))
		case "max", "lte":
			return invalid(field, fmt.Sprintf("%s acima do máximo (%s)", field, fe.Param()))
		case "oneof":
			return invalid(field, fmt.Sprintf("%s deve ser um de: %s", field, fe.Param()))
		}
		return invalid(field, field+" inválido")
	}
	return err
}

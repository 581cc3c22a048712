package httpapi

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/dto"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// erros usam o nome do campo JSON, não o do struct
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct devolve os campos inválidos; vazio quando s passa
func validateStruct(s any) []dto.FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.FieldError{{Field: "", Tag: err.Error()}}
	}
	out := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dto.FieldError{Field: fe.Field(), Tag: fe.Tag()})
	}
	return out
}

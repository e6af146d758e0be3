package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"carwash/internal/types"
)

// Validator wraps go-playground/validator and converts its errors into
// validation AppErrors.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator that reports JSON field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. The first failing field is reported in Details.
func (v *Validator) Struct(s any, code types.ErrorCode) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return types.NewAppError(code, "invalid value for "+fe.Field(), err).
			WithDetails(map[string]any{"field": fe.Field(), "rule": fe.Tag(), "param": fe.Param()})
	}
	return types.NewAppError(code, "invalid request", err)
}

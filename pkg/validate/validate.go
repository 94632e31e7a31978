// Package validate holds the shared validator used by services and HTTP handlers.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/types"
	"github.com/go-playground/validator/v10"
)

var instance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	// Money validates as its float value so gte/lte tags apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if m, ok := field.Interface().(types.Money); ok {
			return m.Float64()
		}
		return nil
	}, types.Money{})
	return v
}

// Struct validates v and returns a VALIDATION_ERROR with per-field details.
func Struct(v any) error {
	if err := instance.Struct(v); err != nil {
		return Format(err)
	}
	return nil
}

// Var validates a single value against tag, reporting it under field.
func Var(field string, value any, tag string) error {
	if err := instance.Var(value, tag); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s %s", field, message(errs[0]))).
				WithDetails(map[string]string{field: message(errs[0])})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	return nil
}

// Format converts validator output into the typed error used across the module.
func Format(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		parts := make([]string, 0, len(errs))
		for _, fieldErr := range errs {
			msg := message(fieldErr)
			details[fieldErr.Field()] = msg
			parts = append(parts, fieldErr.Field()+" "+msg)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed: "+strings.Join(parts, "; ")).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "dive":
		return "contains an invalid element"
	}
	return "is invalid"
}

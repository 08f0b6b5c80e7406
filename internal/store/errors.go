package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"dropindex/internal/services"
)

// ValidationError reports a record rejected before anything was written.
type ValidationError struct {
	Record string
	ID     int64
	Field  string
	Rule   string
	Value  any
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("invalid %s %d: %s violates %s (value %v)", e.Record, e.ID, e.Field, e.Rule, e.Value)
}

// Unwrap classifies every ValidationError as services.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func validateRecord(record string, id int64, value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Record: record, ID: id, Field: fe.Field(), Rule: fe.Tag(), Value: fe.Value()}
	}
	return services.Wrap(services.ErrValidation, "store", "validate", record, err)
}

package health

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/edgard/mamabot/internal/errs"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so details match what clients sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and converts failures to a validation error with one
// FieldIssue per failed constraint.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.NewInternalError(errs.GenericMessage, fmt.Errorf("validator misuse: %w", err))
	}

	issues := lo.Map(verrs, func(fe validator.FieldError, _ int) errs.FieldIssue {
		return errs.FieldIssue{
			Field:      fe.Field(),
			Constraint: fe.Tag(),
			Param:      fe.Param(),
			Message:    issueMessage(fe),
		}
	})
	return errs.NewValidationError("invalid input", issues...)
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email address"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validationIssue(field, constraint, message string) error {
	return errs.NewValidationError("invalid input", errs.FieldIssue{Field: field, Constraint: constraint, Message: message})
}

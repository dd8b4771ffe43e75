package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError maps JSON field names to what is wrong with them
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for i, f := range fields {
		fields[i] = f + ": " + v.Errors[f]
	}
	return strings.Join(fields, "; ")
}

// NewValidationError keeps the first failure reported for each field
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	v := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		if _, seen := v.Errors[fe.Field()]; !seen {
			v.Errors[fe.Field()] = describe(fe)
		}
	}
	return v
}

// AddError records message for field, replacing any earlier one
func (v *ValidationError) AddError(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string]string)
	}
	v.Errors[field] = message
}

func (v *ValidationError) HasErrors() bool { return len(v.Errors) > 0 }

func describe(fe validator.FieldError) string {
	f, p := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return f + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", f, p)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", f, p)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", f, p)
	case "gte", "lte":
		op := "at least"
		if fe.Tag() == "lte" {
			op = "at most"
		}
		return fmt.Sprintf("%s must be %s %s", f, op, p)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, strings.ReplaceAll(p, " ", ", "))
	case "url":
		return f + " must be a valid URL"
	case "scan_type":
		return fmt.Sprintf("%s must be one of: %s", f, strings.Join(ScanInputTypes, ", "))
	case "indicator_type":
		return fmt.Sprintf("%s must be one of: %s", f, strings.Join(IndicatorTypes, ", "))
	}
	return f + " is invalid"
}

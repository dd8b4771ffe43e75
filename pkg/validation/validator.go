package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// ScanInputTypes are the input kinds accepted by the scan endpoint.
var ScanInputTypes = []string{"website", "url", "email", "phone", "crypto", "message", "username", "domain", "ip"}

// IndicatorTypes are the entity types of the intelligence graph.
var IndicatorTypes = []string{"email", "phone", "url", "domain", "crypto_wallet", "ip", "username"}

// Get returns the shared validator with the custom tags registered.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("scan_type", oneOfFunc(ScanInputTypes))
		_ = validate.RegisterValidation("indicator_type", oneOfFunc(IndicatorTypes))
		_ = validate.RegisterValidation("notblank", notBlank)
	})
	return validate
}

// IsScanInputType reports whether t is an accepted scan input type.
func IsScanInputType(t string) bool {
	for _, s := range ScanInputTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ValidateStruct validates s and converts validator errors into a *ValidationError.
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}

func oneOfFunc(allowed []string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

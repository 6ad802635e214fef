package api

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared across requests; the validator instance caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report field names as they appear on the wire, not as Go identifiers.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateStruct checks a request payload against its constraint tags.
// All violations are collected so clients see every failing field at once;
// the returned error unwraps to validator.ValidationErrors.
func ValidateStruct(payload any) error {
	return validate.Struct(payload)
}

// FieldError is one failing field path plus a human-readable message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}

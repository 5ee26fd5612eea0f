// File: internal/common/validation.go
package common

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// basicEmailPattern only checks shape; deliverability is left to the identity provider.
var basicEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewValidator returns a validator that reports fields by their JSON name
// and knows the "basicemail" rule.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("basicemail", func(fl validator.FieldLevel) bool {
		return basicEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct runs v over s and converts a failure into a 400 APIError
// whose message names the first offending field.
func ValidateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrBadRequest.WithDetails("Request body could not be validated.")
	}
	details := FormatValidationErrors(verrs)
	return NewValidationAPIError(details[verrs[0].Field()], details)
}

// FormatValidationErrors converts validator.ValidationErrors into a map.
func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	errorMap := make(map[string]string)
	for _, e := range errs {
		field := e.Field()
		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("The %s field is required.", field)
		case "email", "basicemail":
			message = fmt.Sprintf("The %s field must be a valid email address.", field)
		case "min":
			if e.Kind() == reflect.String {
				message = fmt.Sprintf("The %s field must be at least %s characters long.", field, e.Param())
			} else {
				message = fmt.Sprintf("The %s field must be at least %s.", field, e.Param())
			}
		case "max":
			if e.Kind() == reflect.String {
				message = fmt.Sprintf("The %s field may not be greater than %s characters.", field, e.Param())
			} else {
				message = fmt.Sprintf("The %s field may not be greater than %s.", field, e.Param())
			}
		case "oneof":
			message = fmt.Sprintf("The %s field must be one of the following values: %s.", field, e.Param())
		case "datetime":
			message = fmt.Sprintf("The %s field must be a valid date in the format %s.", field, e.Param())
		case "uuid":
			message = fmt.Sprintf("The %s field must be a valid UUID.", field)
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag.", field, e.Tag())
		}
		errorMap[field] = message
	}
	return errorMap
}

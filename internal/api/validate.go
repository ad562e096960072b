package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first validation failure into a client message.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid request."
	}

	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Missing %s.", field)
	case "email":
		return fmt.Sprintf("%q is not a valid email.", field)
	case "gte":
		return fmt.Sprintf("%q must be greater than or equal to %s.", field, fe.Param())
	case "min":
		return fmt.Sprintf("%q must not be empty.", field)
	default:
		return fmt.Sprintf("%q is invalid.", field)
	}
}

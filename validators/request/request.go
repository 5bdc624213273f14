package request

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs the struct tags and flattens failures into a field->message
// map for the validation error response.
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["request"] = "Invalid request body!"
		return errs
	}
	for _, fe := range validationErrs {
		errs[strings.ToLower(fe.Field())] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required!", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address!", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s!", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s!", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s!", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s!", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid!", field)
	}
}

package subscribers

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// local@domain.tld, nothing stricter
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	return v
}

// ValidateEmail checks the basic local@domain.tld shape.
func ValidateEmail(email string) error {
	err := validate.Var(email, "required,emailshape")
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "required" {
		return &ValidationError{Field: "email", Reason: "Email is required"}
	}
	return &ValidationError{Field: "email", Reason: "Invalid email format"}
}

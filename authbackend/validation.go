package authbackend

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/brandbolt/internal/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks credentials locally. Failures wrap errors.ErrValidation.
func (c Credentials) Validate() error {
	return validationError(validate.Struct(c))
}

// ValidateEmail checks a bare email address.
func ValidateEmail(email string) error {
	return validationError(validate.Var(email, "required,email,max=254"))
}

// ValidatePassword checks a bare password.
func ValidatePassword(password string) error {
	return validationError(validate.Var(password, "required,min=6,max=72"))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrapf(errors.ErrValidation, "%s", err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		if field == "" {
			field = "value"
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q", field, fe.Tag()))
	}
	return errors.Wrapf(errors.ErrValidation, "%s", strings.Join(msgs, ", "))
}

package hub

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Username shape rules: 3-20 characters, letters, digits and underscores only.
const (
	usernameMinLen = 3
	usernameMaxLen = 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

var (
	errLengthViolation  = fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidUsername, usernameMinLen, usernameMaxLen)
	errCharsetViolation = fmt.Errorf("%w: only letters, numbers and underscores are allowed", ErrInvalidUsername)
)

// usernameForm is the shape checked by the validator. The charset rule is
// registered as a custom validation so the tag reads like the builtins.
type usernameForm struct {
	Username string `validate:"required,min=3,max=20,username_charset"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// RegisterValidation only fails for an empty tag name.
	_ = v.RegisterValidation("username_charset", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateUsername checks the shape of a candidate display name. It is pure:
// no state is consulted beyond the candidate itself, and name collisions are
// the registry's concern, not this function's.
func ValidateUsername(candidate string) error {
	err := validate.Struct(usernameForm{Username: candidate})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "username_charset" {
				return errCharsetViolation
			}
		}
		return errLengthViolation
	}

	return fmt.Errorf("%w: %v", ErrInvalidUsername, err)
}

package validation

import (
	"errors"

	validatorv10 "github.com/go-playground/validator/v10"
)

var customerValidator = New()

// CheckCustomer runs the CustomerInput field rules (non-blank name, valid
// email) and reports the first failure as a validation Error.
func CheckCustomer(in CustomerInput) *Error {
	err := customerValidator.Struct(in)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			switch fe.Field() {
			case "name":
				return &Error{Kind: KindMissingName, Message: "Name is required.", Value: in.Email}
			case "email":
				return &Error{Kind: KindInvalidEmail, Message: "Invalid email address.", Value: in.Email}
			}
		}
	}
	return &Error{Kind: KindInvalidEmail, Message: err.Error(), Value: in.Email}
}

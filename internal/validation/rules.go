package validation

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// Kind identifies a validation failure. Validation failures are always
// recovered by the command handlers and returned to callers as messages.
type Kind string

const (
	KindEmailTaken        Kind = "EMAIL_TAKEN"
	KindMissingName       Kind = "MISSING_NAME"
	KindInvalidEmail      Kind = "INVALID_EMAIL"
	KindInvalidPhone      Kind = "INVALID_PHONE"
	KindInvalidPrice      Kind = "INVALID_PRICE"
	KindInvalidStock      Kind = "INVALID_STOCK"
	KindInvalidCustomer   Kind = "INVALID_CUSTOMER"
	KindEmptyProductList  Kind = "EMPTY_PRODUCT_LIST"
	KindInvalidProductIDs Kind = "INVALID_PRODUCT_IDS"
)

// Error is a user-facing validation failure. Value carries the offending input
// where there is one (the email for EmailTaken, the phone for InvalidPhone).
type Error struct {
	Kind    Kind
	Message string
	Value   string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Kind so callers can compare against the sentinel errors below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidPrice      = &Error{Kind: KindInvalidPrice, Message: "Price must be positive."}
	ErrInvalidStock      = &Error{Kind: KindInvalidStock, Message: "Stock cannot be negative."}
	ErrInvalidCustomer   = &Error{Kind: KindInvalidCustomer, Message: "Invalid customer ID."}
	ErrEmptyProductList  = &Error{Kind: KindEmptyProductList, Message: "At least one product must be selected."}
	ErrInvalidProductIDs = &Error{Kind: KindInvalidProductIDs, Message: "One or more product IDs are invalid."}
)

// EmailTaken reports that email already belongs to a customer.
func EmailTaken(email string) *Error {
	return &Error{Kind: KindEmailTaken, Message: "Email already exists.", Value: email}
}

// AsError unwraps err into a validation Error.
func AsError(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// "+" optional, then 7-15 digits; or NNN-NNN-NNNN.
var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$|^\d{3}-\d{3}-\d{4}$`)

// ValidatePhone accepts an empty phone (not provided) and the two supported formats.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return &Error{Kind: KindInvalidPhone, Message: "Invalid phone number format.", Value: phone}
	}
	return nil
}

// ValidatePrice rejects zero and negative prices.
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// ValidateStock rejects negative stock.
func ValidateStock(stock int) error {
	if stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// Package apperr defines the typed failures returned by the sale engine and
// the repositories behind it.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota

	// validation: rejected before any storage access
	KindEmptyCart
	KindNoCustomerSelected
	KindInvalidPartialPayment
	KindInvalidCartLine
	KindInvalidPaymentMethod
	KindInvalidAmount
	KindInvalidInput

	// consistency: rejected inside the atomic scope
	KindProductNotFound
	KindInsufficientStock
	KindCustomerNotFound
	KindSaleNotFound
	KindTransactionNotFound

	KindSequenceContention
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindEmptyCart:             "empty_cart",
	KindNoCustomerSelected:    "no_customer_selected",
	KindInvalidPartialPayment: "invalid_partial_payment",
	KindInvalidCartLine:       "invalid_cart_line",
	KindInvalidPaymentMethod:  "invalid_payment_method",
	KindInvalidAmount:         "invalid_amount",
	KindInvalidInput:          "invalid_input",
	KindProductNotFound:       "product_not_found",
	KindInsufficientStock:     "insufficient_stock",
	KindCustomerNotFound:      "customer_not_found",
	KindSaleNotFound:          "sale_not_found",
	KindTransactionNotFound:   "transaction_not_found",
	KindSequenceContention:    "sequence_contention",
	KindStorage:               "storage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error carries a Kind plus the offending entity id, if any.
type Error struct {
	Kind     Kind
	EntityID string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.EntityID != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.EntityID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work
// with errors.Is regardless of entity id.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrEmptyCart             = &Error{Kind: KindEmptyCart, Msg: "cart is empty"}
	ErrNoCustomerSelected    = &Error{Kind: KindNoCustomerSelected, Msg: "no customer selected"}
	ErrInvalidPartialPayment = &Error{Kind: KindInvalidPartialPayment, Msg: "partial payment must be greater than zero and less than the total"}
	ErrInvalidCartLine       = &Error{Kind: KindInvalidCartLine, Msg: "invalid cart line"}
	ErrInvalidPaymentMethod  = &Error{Kind: KindInvalidPaymentMethod, Msg: "invalid payment method"}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount, Msg: "amount must be greater than zero"}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrProductNotFound       = &Error{Kind: KindProductNotFound, Msg: "product not found"}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock, Msg: "insufficient stock"}
	ErrCustomerNotFound      = &Error{Kind: KindCustomerNotFound, Msg: "customer not found"}
	ErrSaleNotFound          = &Error{Kind: KindSaleNotFound, Msg: "sale not found"}
	ErrTransactionNotFound   = &Error{Kind: KindTransactionNotFound, Msg: "transaction not found"}
	ErrSequenceContention    = &Error{Kind: KindSequenceContention, Msg: "invoice sequence contention"}
	ErrStorage               = &Error{Kind: KindStorage, Msg: "storage failure"}
)

func ProductNotFound(id string) error {
	return &Error{Kind: KindProductNotFound, Msg: ErrProductNotFound.Msg, EntityID: id}
}

func InsufficientStock(id string) error {
	return &Error{Kind: KindInsufficientStock, Msg: ErrInsufficientStock.Msg, EntityID: id}
}

func CustomerNotFound(id string) error {
	return &Error{Kind: KindCustomerNotFound, Msg: ErrCustomerNotFound.Msg, EntityID: id}
}

func SaleNotFound(id string) error {
	return &Error{Kind: KindSaleNotFound, Msg: ErrSaleNotFound.Msg, EntityID: id}
}

func TransactionNotFound(id string) error {
	return &Error{Kind: KindTransactionNotFound, Msg: ErrTransactionNotFound.Msg, EntityID: id}
}

func InvalidCartLine(productID, reason string) error {
	return &Error{Kind: KindInvalidCartLine, Msg: "invalid cart line (" + reason + ")", EntityID: productID}
}

func InvalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

// Contention wraps a storage error that lost a race and may be retried.
func Contention(err error) error {
	return &Error{Kind: KindSequenceContention, Msg: ErrSequenceContention.Msg, Err: err}
}

// Storage wraps an infrastructure failure.
func Storage(err error) error {
	return &Error{Kind: KindStorage, Msg: ErrStorage.Msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// EntityOf returns the entity id carried by err, if any.
func EntityOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.EntityID
	}
	return ""
}

// Retryable reports whether the whole attempt may be re-run.
func Retryable(err error) bool {
	return KindOf(err) == KindSequenceContention
}

// IsValidation reports failures raised before storage was touched.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindEmptyCart, KindNoCustomerSelected, KindInvalidPartialPayment,
		KindInvalidCartLine, KindInvalidPaymentMethod, KindInvalidAmount, KindInvalidInput:
		return true
	}
	return false
}

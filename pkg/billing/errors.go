package billing

import "errors"

// Domain-level error values returned by the billing service.
var (
	ErrInsufficientCredit      = errors.New("insufficient credit balance")
	ErrCustomerMismatch        = errors.New("customer does not match invoice")
	ErrInvoiceCancelled        = errors.New("invoice is cancelled")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrUnknownInvoice          = errors.New("unknown invoice")
	ErrUnknownPayment          = errors.New("unknown payment")
	ErrUnknownCustomer         = errors.New("unknown customer")
	ErrInvalidAmount           = errors.New("invalid payment amount")
	ErrInvalidInvoiceID        = errors.New("invalid invoice id")
	ErrInvalidCustomerID       = errors.New("invalid customer id")
	ErrInvalidPaymentID        = errors.New("invalid payment id")
	ErrInvalidCreditID         = errors.New("invalid credit id")
	ErrInvalidIdempotencyKey   = errors.New("invalid idempotency key")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrInvalidInvoiceStatus    = errors.New("invalid invoice status")
	ErrInvalidCreditState      = errors.New("invalid credit state")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
)

package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/veldstays/backoffice/pkg/money"
)

// InvoiceID identifies an invoice.
type InvoiceID struct {
	value string
}

// CustomerID identifies a customer.
type CustomerID struct {
	value string
}

// PaymentID identifies a recorded payment.
type PaymentID struct {
	value string
}

// CreditID identifies a customer credit record.
type CreditID struct {
	value string
}

// IdempotencyKey scopes duplicate detection for payment submissions.
type IdempotencyKey struct {
	value string
}

// MetadataJSON stores arbitrary request metadata alongside a payment.
type MetadataJSON struct {
	value string
}

// PaymentMethod enumerates how a payment was made.
type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodCreditBalance PaymentMethod = "credit_balance"
)

// InvoiceStatus defines the invoice lifecycle. It is always derived from
// totalPaid versus total, never set independently.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// Invoice is the billed document payments are recorded against.
type Invoice struct {
	ID         InvoiceID
	CustomerID CustomerID
	Number     string
	Total      money.Amount
	TotalPaid  money.Amount
	Status     InvoiceStatus
}

// Payment is one immutable line in the payment ledger. Removal happens only
// through the explicit admin deletion path.
type Payment struct {
	ID             PaymentID
	InvoiceID      InvoiceID
	CustomerID     CustomerID
	Amount         money.Amount
	Date           time.Time
	Method         PaymentMethod
	Reference      string
	Description    string
	Metadata       MetadataJSON
	IdempotencyKey IdempotencyKey
}

// CustomerCredit is a discrete, FIFO-consumable balance created by
// overpayment. RemainingAmount never exceeds Amount and never goes negative.
type CustomerCredit struct {
	ID              CreditID
	CustomerID      CustomerID
	Amount          money.Amount
	RemainingAmount money.Amount
	SourceInvoiceID InvoiceID
	Description     string
	Active          bool
	CreatedAt       time.Time
}

// PaymentResult is returned by payment-recording operations.
type PaymentResult struct {
	Payment Payment
	Invoice Invoice
	Credit  *CustomerCredit
}

// PaymentSummary is the derived view of an invoice's ledger.
type PaymentSummary struct {
	TotalPaid        money.Amount
	RemainingBalance money.Amount
	Status           InvoiceStatus
	Payments         []Payment
}

// NewInvoiceID validates and normalizes an invoice id.
func NewInvoiceID(raw string) (InvoiceID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return InvoiceID{}, fmt.Errorf("%w: empty value", ErrInvalidInvoiceID)
	}
	return InvoiceID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id InvoiceID) String() string {
	return id.value
}

// NewCustomerID validates and normalizes a customer id.
func NewCustomerID(raw string) (CustomerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CustomerID{}, fmt.Errorf("%w: empty value", ErrInvalidCustomerID)
	}
	return CustomerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CustomerID) String() string {
	return id.value
}

// NewPaymentID validates and normalizes a payment id.
func NewPaymentID(raw string) (PaymentID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PaymentID{}, fmt.Errorf("%w: empty value", ErrInvalidPaymentID)
	}
	return PaymentID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id PaymentID) String() string {
	return id.value
}

// NewCreditID validates and normalizes a credit id.
func NewCreditID(raw string) (CreditID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CreditID{}, fmt.Errorf("%w: empty value", ErrInvalidCreditID)
	}
	return CreditID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CreditID) String() string {
	return id.value
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// NewMetadataJSON validates a metadata string (defaulting to "{}" for empty
// inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// ParsePaymentMethod validates a stored method value.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch method := PaymentMethod(raw); method {
	case PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodCard, PaymentMethodCreditBalance:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
}

// String returns the stored method value.
func (method PaymentMethod) String() string {
	return string(method)
}

// ParseInvoiceStatus validates a stored status value.
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	switch status := InvoiceStatus(raw); status {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidInvoiceStatus, raw)
	}
}

// String returns the stored status value.
func (status InvoiceStatus) String() string {
	return string(status)
}

// DeriveInvoiceStatus computes the status implied by totalPaid versus total.
// Fully covered invoices are PAID, partially covered ones PARTIALLY_PAID.
// With nothing paid, a previously paid-tracking status falls back to SENT
// (the delete-payment path); any other status is left as is.
func DeriveInvoiceStatus(previous InvoiceStatus, totalPaid money.Amount, total money.Amount) InvoiceStatus {
	switch {
	case totalPaid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case totalPaid.IsPositive():
		return InvoiceStatusPartiallyPaid
	case previous == InvoiceStatusPaid || previous == InvoiceStatusPartiallyPaid:
		return InvoiceStatusSent
	default:
		return previous
	}
}

// Store is the persistence contract used by Service. Implementations must
// hand back row-locked invoices and credits from the ForUpdate variants so a
// transaction holds exclusive write access until commit.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetInvoice(ctx context.Context, invoiceID InvoiceID) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, invoiceID InvoiceID) (Invoice, error)
	UpdateInvoiceTotals(ctx context.Context, invoiceID InvoiceID, totalPaid money.Amount, status InvoiceStatus) error
	InsertPayment(ctx context.Context, payment Payment) error
	GetPayment(ctx context.Context, paymentID PaymentID) (Payment, error)
	DeletePayment(ctx context.Context, paymentID PaymentID) error
	ListPayments(ctx context.Context, invoiceID InvoiceID) ([]Payment, error)
	ListPaymentsByCustomer(ctx context.Context, customerID CustomerID) ([]Payment, error)
	InsertCredit(ctx context.Context, credit CustomerCredit) error
	ListActiveCreditsForUpdate(ctx context.Context, customerID CustomerID) ([]CustomerCredit, error)
	UpdateCredit(ctx context.Context, credit CustomerCredit) error
	SumActiveCredits(ctx context.Context, customerID CustomerID) (money.Amount, error)
}

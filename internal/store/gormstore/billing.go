package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/veldstays/backoffice/pkg/billing"
	"github.com/veldstays/backoffice/pkg/money"
)

// BillingStore implements billing.Store using GORM.
type BillingStore struct {
	db *gorm.DB
}

// NewBillingStore returns a BillingStore backed by gorm.DB.
func NewBillingStore(db *gorm.DB) *BillingStore {
	return &BillingStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *BillingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore billing.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &BillingStore{db: transaction})
	})
}

// GetInvoice loads an invoice without locking it.
func (store *BillingStore) GetInvoice(ctx context.Context, invoiceID billing.InvoiceID) (billing.Invoice, error) {
	return store.getInvoice(store.db.WithContext(ctx), invoiceID)
}

// GetInvoiceForUpdate loads an invoice holding a row lock until the enclosing
// transaction commits.
func (store *BillingStore) GetInvoiceForUpdate(ctx context.Context, invoiceID billing.InvoiceID) (billing.Invoice, error) {
	return store.getInvoice(lockForUpdate(store.db.WithContext(ctx)), invoiceID)
}

func (store *BillingStore) getInvoice(db *gorm.DB, invoiceID billing.InvoiceID) (billing.Invoice, error) {
	var row Invoice
	err := db.Where("invoice_id = ?", invoiceID.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Invoice{}, wrapStoreError(errorSubjectInvoice, errorCodeGet, billing.ErrUnknownInvoice)
		}
		return billing.Invoice{}, wrapStoreError(errorSubjectInvoice, errorCodeGet, err)
	}
	invoice, err := mapInvoice(row)
	if err != nil {
		return billing.Invoice{}, wrapStoreError(errorSubjectInvoice, errorCodeInvalid, err)
	}
	return invoice, nil
}

// UpdateInvoiceTotals persists a recomputed paid total together with the
// status derived from it.
func (store *BillingStore) UpdateInvoiceTotals(ctx context.Context, invoiceID billing.InvoiceID, totalPaid money.Amount, status billing.InvoiceStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Invoice{}).
		Where("invoice_id = ?", invoiceID.String()).
		Updates(map[string]interface{}{
			"total_paid_cents": totalPaid.Cents(),
			"status":           status.String(),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectInvoice, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectInvoice, errorCodeUpdate, billing.ErrUnknownInvoice)
	}
	return nil
}

// InsertPayment persists a payment row, surfacing idempotency-key reuse as
// billing.ErrDuplicateIdempotencyKey.
func (store *BillingStore) InsertPayment(ctx context.Context, payment billing.Payment) error {
	model := Payment{
		PaymentID:      payment.ID.String(),
		InvoiceID:      payment.InvoiceID.String(),
		CustomerID:     payment.CustomerID.String(),
		AmountCents:    payment.Amount.Cents(),
		PaidAt:         payment.Date.UTC(),
		Method:         payment.Method.String(),
		Reference:      payment.Reference,
		Description:    payment.Description,
		Metadata:       datatypes.JSON([]byte(payment.Metadata.String())),
		IdempotencyKey: payment.IdempotencyKey.String(),
		CreatedAt:      time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, billing.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	return nil
}

// GetPayment loads a payment by id.
func (store *BillingStore) GetPayment(ctx context.Context, paymentID billing.PaymentID) (billing.Payment, error) {
	var row Payment
	err := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeGet, billing.ErrUnknownPayment)
		}
		return billing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	payment, err := mapPayment(row)
	if err != nil {
		return billing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return payment, nil
}

// DeletePayment removes a payment row.
func (store *BillingStore) DeletePayment(ctx context.Context, paymentID billing.PaymentID) error {
	result := store.db.WithContext(ctx).
		Where("payment_id = ?", paymentID.String()).
		Delete(&Payment{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPayment, errorCodeDelete, billing.ErrUnknownPayment)
	}
	return nil
}

// ListPayments returns an invoice's payments, newest first.
func (store *BillingStore) ListPayments(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	var rows []Payment
	err := store.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID.String()).
		Order("paid_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	return mapPayments(rows)
}

// ListPaymentsByCustomer returns a customer's payments across invoices,
// newest first.
func (store *BillingStore) ListPaymentsByCustomer(ctx context.Context, customerID billing.CustomerID) ([]billing.Payment, error) {
	var rows []Payment
	err := store.db.WithContext(ctx).
		Where("customer_id = ?", customerID.String()).
		Order("paid_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	return mapPayments(rows)
}

// InsertCredit persists a new customer credit.
func (store *BillingStore) InsertCredit(ctx context.Context, credit billing.CustomerCredit) error {
	now := time.Now().UTC()
	createdAt := credit.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	model := CustomerCredit{
		CreditID:             credit.ID.String(),
		CustomerID:           credit.CustomerID.String(),
		AmountCents:          credit.Amount.Cents(),
		RemainingAmountCents: credit.RemainingAmount.Cents(),
		SourceInvoiceID:      credit.SourceInvoiceID.String(),
		Description:          credit.Description,
		Active:               credit.Active,
		CreatedAt:            createdAt,
		UpdatedAt:            now,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectCredit, errorCodeInsert, err)
	}
	return nil
}

// ListActiveCreditsForUpdate returns a customer's active credits oldest
// first, row locked so consumption stays serialized.
func (store *BillingStore) ListActiveCreditsForUpdate(ctx context.Context, customerID billing.CustomerID) ([]billing.CustomerCredit, error) {
	var rows []CustomerCredit
	err := lockForUpdate(store.db.WithContext(ctx)).
		Where("customer_id = ? AND active = ?", customerID.String(), true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCredit, errorCodeList, err)
	}
	credits := make([]billing.CustomerCredit, 0, len(rows))
	for _, row := range rows {
		credit, err := mapCredit(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCredit, errorCodeInvalid, err)
		}
		credits = append(credits, credit)
	}
	return credits, nil
}

// UpdateCredit persists a credit's remaining amount and active flag.
func (store *BillingStore) UpdateCredit(ctx context.Context, credit billing.CustomerCredit) error {
	result := store.db.WithContext(ctx).
		Model(&CustomerCredit{}).
		Where("credit_id = ?", credit.ID.String()).
		Updates(map[string]interface{}{
			"remaining_amount_cents": credit.RemainingAmount.Cents(),
			"active":                 credit.Active,
			"updated_at":             time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCredit, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCredit, errorCodeUpdate, billing.ErrInvalidCreditState)
	}
	return nil
}

// SumActiveCredits returns the customer's available credit balance.
func (store *BillingStore) SumActiveCredits(ctx context.Context, customerID billing.CustomerID) (money.Amount, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&CustomerCredit{}).
		Select("coalesce(sum(remaining_amount_cents),0) as total").
		Where("customer_id = ? AND active = ?", customerID.String(), true).
		Scan(&sum).Error
	if err != nil {
		return money.Zero(), wrapStoreError(errorSubjectCredit, errorCodeSum, err)
	}
	return money.FromCents(sum.Total), nil
}

type sqlSum struct {
	Total int64
}

func mapInvoice(row Invoice) (billing.Invoice, error) {
	invoiceID, err := billing.NewInvoiceID(row.InvoiceID)
	if err != nil {
		return billing.Invoice{}, err
	}
	customerID, err := billing.NewCustomerID(row.CustomerID)
	if err != nil {
		return billing.Invoice{}, err
	}
	status, err := billing.ParseInvoiceStatus(row.Status)
	if err != nil {
		return billing.Invoice{}, err
	}
	return billing.Invoice{
		ID:         invoiceID,
		CustomerID: customerID,
		Number:     row.Number,
		Total:      money.FromCents(row.TotalCents),
		TotalPaid:  money.FromCents(row.TotalPaidCents),
		Status:     status,
	}, nil
}

func mapPayments(rows []Payment) ([]billing.Payment, error) {
	payments := make([]billing.Payment, 0, len(rows))
	for _, row := range rows {
		payment, err := mapPayment(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func mapPayment(row Payment) (billing.Payment, error) {
	paymentID, err := billing.NewPaymentID(row.PaymentID)
	if err != nil {
		return billing.Payment{}, err
	}
	invoiceID, err := billing.NewInvoiceID(row.InvoiceID)
	if err != nil {
		return billing.Payment{}, err
	}
	customerID, err := billing.NewCustomerID(row.CustomerID)
	if err != nil {
		return billing.Payment{}, err
	}
	method, err := billing.ParsePaymentMethod(row.Method)
	if err != nil {
		return billing.Payment{}, err
	}
	metadata, err := billing.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return billing.Payment{}, err
	}
	idempotencyKey, err := billing.NewIdempotencyKey(row.IdempotencyKey)
	if err != nil {
		return billing.Payment{}, err
	}
	return billing.Payment{
		ID:             paymentID,
		InvoiceID:      invoiceID,
		CustomerID:     customerID,
		Amount:         money.FromCents(row.AmountCents),
		Date:           row.PaidAt.UTC(),
		Method:         method,
		Reference:      row.Reference,
		Description:    row.Description,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
	}, nil
}

func mapCredit(row CustomerCredit) (billing.CustomerCredit, error) {
	creditID, err := billing.NewCreditID(row.CreditID)
	if err != nil {
		return billing.CustomerCredit{}, err
	}
	customerID, err := billing.NewCustomerID(row.CustomerID)
	if err != nil {
		return billing.CustomerCredit{}, err
	}
	credit := billing.CustomerCredit{
		ID:              creditID,
		CustomerID:      customerID,
		Amount:          money.FromCents(row.AmountCents),
		RemainingAmount: money.FromCents(row.RemainingAmountCents),
		Description:     row.Description,
		Active:          row.Active,
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if row.SourceInvoiceID != "" {
		sourceInvoiceID, err := billing.NewInvoiceID(row.SourceInvoiceID)
		if err != nil {
			return billing.CustomerCredit{}, err
		}
		credit.SourceInvoiceID = sourceInvoiceID
	}
	return credit, nil
}

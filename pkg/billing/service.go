package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veldstays/backoffice/pkg/money"
)

// Service contains the payment ledger domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// RecordPaymentInput collects the fields of a payment submission.
type RecordPaymentInput struct {
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

// RecordPayment appends a payment to an invoice's ledger, persists the
// recomputed totalPaid and derived status together, and converts any
// overpayment into an active customer credit. The whole sequence runs in one
// transaction with the invoice row locked, so concurrent payments serialize
// instead of both reading the stale totalPaid.
func (service *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (PaymentResult, error) {
	var result PaymentResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		result, err = service.recordPaymentLocked(ctx, transactionStore, input)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:      operationRecordPayment,
		InvoiceID:      input.InvoiceID,
		CustomerID:     input.CustomerID,
		PaymentID:      result.Payment.ID,
		Amount:         input.Amount,
		Method:         result.Payment.Method,
		InvoiceStatus:  result.Invoice.Status,
		CreditCreated:  result.Credit != nil,
		IdempotencyKey: input.IdempotencyKey,
		Error:          operationError,
	})
	if operationError != nil {
		return PaymentResult{}, operationError
	}
	return result, nil
}

// recordPaymentLocked is the shared body of RecordPayment and ApplyCredit.
// Callers must already be inside a Store transaction.
func (service *Service) recordPaymentLocked(ctx context.Context, transactionStore Store, input RecordPaymentInput) (PaymentResult, error) {
	if !input.Amount.IsPositive() {
		return PaymentResult{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	invoice, err := transactionStore.GetInvoiceForUpdate(ctx, input.InvoiceID)
	if err != nil {
		return PaymentResult{}, err
	}
	if invoice.CustomerID != input.CustomerID {
		return PaymentResult{}, fmt.Errorf("%w: invoice %s belongs to %s", ErrCustomerMismatch, invoice.ID.String(), invoice.CustomerID.String())
	}
	if invoice.Status == InvoiceStatusCancelled {
		return PaymentResult{}, fmt.Errorf("%w: %s", ErrInvoiceCancelled, invoice.ID.String())
	}

	payment := Payment{
		ID:             PaymentID{value: uuid.NewString()},
		InvoiceID:      invoice.ID,
		CustomerID:     input.CustomerID,
		Amount:         input.Amount,
		Date:           input.Date,
		Method:         input.Method,
		Reference:      input.Reference,
		Description:    input.Description,
		Metadata:       input.Metadata,
		IdempotencyKey: input.IdempotencyKey,
	}
	if payment.Date.IsZero() {
		payment.Date = service.nowFn()
	}
	if payment.Method == "" {
		payment.Method = PaymentMethodBankTransfer
	}
	if payment.IdempotencyKey == (IdempotencyKey{}) {
		payment.IdempotencyKey = IdempotencyKey{value: uuid.NewString()}
	}
	if err := transactionStore.InsertPayment(ctx, payment); err != nil {
		return PaymentResult{}, err
	}

	newTotalPaid := invoice.TotalPaid.Add(input.Amount)
	newStatus := DeriveInvoiceStatus(invoice.Status, newTotalPaid, invoice.Total)
	if err := transactionStore.UpdateInvoiceTotals(ctx, invoice.ID, newTotalPaid, newStatus); err != nil {
		return PaymentResult{}, err
	}
	invoice.TotalPaid = newTotalPaid
	invoice.Status = newStatus

	result := PaymentResult{Payment: payment, Invoice: invoice}
	if newTotalPaid.GreaterThan(invoice.Total) {
		overpayment := newTotalPaid.Sub(invoice.Total)
		reference := invoice.Number
		if reference == "" {
			reference = invoice.ID.String()
		}
		credit := CustomerCredit{
			ID:              CreditID{value: uuid.NewString()},
			CustomerID:      invoice.CustomerID,
			Amount:          overpayment,
			RemainingAmount: overpayment,
			SourceInvoiceID: invoice.ID,
			Description:     fmt.Sprintf(overpaymentDescriptionForms, reference),
			Active:          true,
			CreatedAt:       service.nowFn(),
		}
		if err := transactionStore.InsertCredit(ctx, credit); err != nil {
			return PaymentResult{}, err
		}
		result.Credit = &credit
	}
	return result, nil
}

// ApplyCredit pays an invoice out of the customer's accumulated credit,
// consuming credit records oldest-first. The credit rows stay row-locked for
// the whole transaction so two simultaneous applications cannot jointly
// overspend one balance. An amount beyond the available balance fails with
// no side effects.
func (service *Service) ApplyCredit(ctx context.Context, customerID CustomerID, invoiceID InvoiceID, amount money.Amount) (PaymentResult, error) {
	var result PaymentResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if !amount.IsPositive() {
			return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
		}
		credits, err := transactionStore.ListActiveCreditsForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		available := money.Zero()
		for _, credit := range credits {
			available = available.Add(credit.RemainingAmount)
		}
		if amount.GreaterThan(available) {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientCredit, amount.String(), available.String())
		}

		left := amount
		for _, credit := range credits {
			if left.IsZero() {
				break
			}
			consumed := credit.RemainingAmount
			if consumed.GreaterThan(left) {
				consumed = left
			}
			credit.RemainingAmount = credit.RemainingAmount.Sub(consumed)
			if credit.RemainingAmount.IsNegative() {
				return fmt.Errorf("%w: credit %s overdrawn", ErrInvalidCreditState, credit.ID.String())
			}
			if credit.RemainingAmount.IsZero() {
				credit.Active = false
			}
			if err := transactionStore.UpdateCredit(ctx, credit); err != nil {
				return err
			}
			left = left.Sub(consumed)
		}

		result, err = service.recordPaymentLocked(ctx, transactionStore, RecordPaymentInput{
			InvoiceID:   invoiceID,
			CustomerID:  customerID,
			Amount:      amount,
			Method:      PaymentMethodCreditBalance,
			Description: creditAppliedDescription,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationApplyCredit,
		InvoiceID:     invoiceID,
		CustomerID:    customerID,
		PaymentID:     result.Payment.ID,
		Amount:        amount,
		Method:        PaymentMethodCreditBalance,
		InvoiceStatus: result.Invoice.Status,
		Error:         operationError,
	})
	if operationError != nil {
		return PaymentResult{}, operationError
	}
	return result, nil
}

// DeletePayment removes a payment and recomputes the invoice's totalPaid and
// status from the payments that remain. Credits already created from the
// deleted payment are left standing.
func (service *Service) DeletePayment(ctx context.Context, paymentID PaymentID) (Invoice, error) {
	var updated Invoice
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payment, err := transactionStore.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		invoice, err := transactionStore.GetInvoiceForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if err := transactionStore.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		remaining, err := transactionStore.ListPayments(ctx, invoice.ID)
		if err != nil {
			return err
		}
		totalPaid := money.Zero()
		for _, row := range remaining {
			totalPaid = totalPaid.Add(row.Amount)
		}
		newStatus := DeriveInvoiceStatus(invoice.Status, totalPaid, invoice.Total)
		if err := transactionStore.UpdateInvoiceTotals(ctx, invoice.ID, totalPaid, newStatus); err != nil {
			return err
		}
		invoice.TotalPaid = totalPaid
		invoice.Status = newStatus
		updated = invoice
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationDeletePayment,
		InvoiceID:     updated.ID,
		PaymentID:     paymentID,
		InvoiceStatus: updated.Status,
		Error:         operationError,
	})
	if operationError != nil {
		return Invoice{}, operationError
	}
	return updated, nil
}

// PaymentSummary returns the derived ledger view for an invoice: exact
// totalPaid, remaining balance, status, and its payments newest-first.
func (service *Service) PaymentSummary(ctx context.Context, invoiceID InvoiceID) (PaymentSummary, error) {
	summary, operationError := service.paymentSummary(ctx, invoiceID)
	service.logOperation(ctx, OperationLog{
		Operation:     operationPaymentSummary,
		InvoiceID:     invoiceID,
		InvoiceStatus: summary.Status,
		Error:         operationError,
	})
	return summary, operationError
}

func (service *Service) paymentSummary(ctx context.Context, invoiceID InvoiceID) (PaymentSummary, error) {
	invoice, err := service.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return PaymentSummary{}, err
	}
	payments, err := service.store.ListPayments(ctx, invoiceID)
	if err != nil {
		return PaymentSummary{}, err
	}
	return PaymentSummary{
		TotalPaid:        invoice.TotalPaid,
		RemainingBalance: invoice.Total.Sub(invoice.TotalPaid),
		Status:           invoice.Status,
		Payments:         payments,
	}, nil
}

// CreditBalance returns the sum of remaining amounts over the customer's
// active credits.
func (service *Service) CreditBalance(ctx context.Context, customerID CustomerID) (money.Amount, error) {
	return service.store.SumActiveCredits(ctx, customerID)
}

// CustomerPayments lists a customer's payments newest-first.
func (service *Service) CustomerPayments(ctx context.Context, customerID CustomerID) ([]Payment, error) {
	return service.store.ListPaymentsByCustomer(ctx, customerID)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// Package notify publishes domain events for downstream handling (email
// confirmations, receipt PDFs, admin dashboards). Events are emitted through
// the services' operation-logger hooks.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/veldstays/backoffice/pkg/availability"
	"github.com/veldstays/backoffice/pkg/billing"
)

const (
	eventPaymentRecorded  = "payment_recorded"
	eventCreditApplied    = "credit_applied"
	eventPaymentDeleted   = "payment_deleted"
	eventConflictDetected = "booking_conflict_detected"
	eventDatesAvailable   = "dates_available"
)

// BillingDispatcher forwards payment ledger events to the process logger.
type BillingDispatcher struct {
	logger *zap.Logger
}

// NewBillingDispatcher wires a dispatcher for the billing service.
func NewBillingDispatcher(logger *zap.Logger) *BillingDispatcher {
	return &BillingDispatcher{logger: logger}
}

// LogOperation implements billing.OperationLogger.
func (dispatcher *BillingDispatcher) LogOperation(_ context.Context, entry billing.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("invoice_id", entry.InvoiceID.String()),
		zap.String("customer_id", entry.CustomerID.String()),
		zap.String("amount", entry.Amount.String()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		dispatcher.logger.Warn("billing operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	switch entry.Operation {
	case "record_payment":
		fields = append(fields,
			zap.String("payment_id", entry.PaymentID.String()),
			zap.String("method", entry.Method.String()),
			zap.String("invoice_status", entry.InvoiceStatus.String()),
			zap.Bool("credit_created", entry.CreditCreated),
		)
		dispatcher.logger.Info(eventPaymentRecorded, fields...)
	case "apply_credit":
		dispatcher.logger.Info(eventCreditApplied, fields...)
	case "delete_payment":
		dispatcher.logger.Info(eventPaymentDeleted, fields...)
	default:
		dispatcher.logger.Info("billing operation", fields...)
	}
}

// AvailabilityDispatcher forwards conflict-check results to the process logger.
type AvailabilityDispatcher struct {
	logger *zap.Logger
}

// NewAvailabilityDispatcher wires a dispatcher for the availability service.
func NewAvailabilityDispatcher(logger *zap.Logger) *AvailabilityDispatcher {
	return &AvailabilityDispatcher{logger: logger}
}

// LogOperation implements availability.OperationLogger.
func (dispatcher *AvailabilityDispatcher) LogOperation(_ context.Context, entry availability.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("unit_id", entry.UnitID.String()),
		zap.String("status", entry.Status),
	}
	if !entry.Stay.IsZero() {
		fields = append(fields, zap.String("stay", entry.Stay.String()))
	}
	if entry.ReservationID.String() != "" {
		fields = append(fields, zap.String("reservation_id", entry.ReservationID.String()))
	}
	if entry.Error != nil {
		dispatcher.logger.Warn("availability operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	if entry.Operation == "check_conflict" {
		fields = append(fields, zap.Int("conflicts", entry.Conflicts))
		if entry.Conflicts > 0 {
			dispatcher.logger.Info(eventConflictDetected, fields...)
			return
		}
		dispatcher.logger.Info(eventDatesAvailable, fields...)
		return
	}
	dispatcher.logger.Info("availability operation", fields...)
}

package billing

import (
	"context"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsRecordPayment(test *testing.T) {
	test.Parallel()
	store := newStubStore(sentInvoice(test, "inv-1", "cust-1", "1000.00"))
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	if _, err := service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:  mustInvoiceID(test, "inv-1"),
		CustomerID: mustCustomerID(test, "cust-1"),
		Amount:     mustAmount(test, "400.00"),
	}); err != nil {
		test.Fatalf("record payment: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationRecordPayment || entry.Status != operationStatusOK {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.InvoiceStatus != InvoiceStatusPartiallyPaid {
		test.Fatalf("expected the derived status in the log, got %s", entry.InvoiceStatus)
	}
}

func TestServiceLogsFailedOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore(sentInvoice(test, "inv-1", "cust-1", "1000.00"))
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	if _, err := service.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:  mustInvoiceID(test, "inv-1"),
		CustomerID: mustCustomerID(test, "cust-2"),
		Amount:     mustAmount(test, "400.00"),
	}); err == nil {
		test.Fatal("expected a customer mismatch error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != operationStatusError || logger.entries[0].Error == nil {
		test.Fatalf("expected an error entry, got %+v", logger.entries[0])
	}
}

func TestServiceLogsPaymentSummary(test *testing.T) {
	test.Parallel()
	store := newStubStore(sentInvoice(test, "inv-1", "cust-1", "1000.00"))
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	if _, err := service.PaymentSummary(context.Background(), mustInvoiceID(test, "inv-1")); err != nil {
		test.Fatalf("payment summary: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationPaymentSummary || entry.Status != operationStatusOK {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.InvoiceStatus != InvoiceStatusSent {
		test.Fatalf("expected the invoice status in the log, got %s", entry.InvoiceStatus)
	}
}

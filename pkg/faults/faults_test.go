package faults

import (
	"errors"
	"testing"
)

func TestWrapPreservesSentinel(test *testing.T) {
	test.Parallel()
	sentinel := errors.New("boom")
	wrapped := Wrap("store", "invoice", "lookup", sentinel)
	if !errors.Is(wrapped, sentinel) {
		test.Fatalf("expected wrapped error to match sentinel, got %v", wrapped)
	}
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "store" || operationError.Subject() != "invoice" || operationError.Code() != "lookup" {
		test.Fatalf("unexpected segments: %+v", operationError)
	}
	if wrapped.Error() != "store.invoice.lookup: boom" {
		test.Fatalf("unexpected message: %s", wrapped.Error())
	}
}

func TestWrapNilIsNil(test *testing.T) {
	test.Parallel()
	if Wrap("store", "invoice", "lookup", nil) != nil {
		test.Fatal("expected nil for nil error")
	}
}

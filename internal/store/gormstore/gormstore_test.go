package gormstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/veldstays/backoffice/internal/store/gormstore"
	"github.com/veldstays/backoffice/pkg/availability"
	"github.com/veldstays/backoffice/pkg/billing"
	"github.com/veldstays/backoffice/pkg/money"
)

func openTestDatabase(test *testing.T) *gorm.DB {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/backoffice.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := gormstore.Migrate(database); err != nil {
		test.Fatalf("migrate failed: %v", err)
	}
	return database
}

func mustDate(test *testing.T, value string) time.Time {
	test.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		test.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func mustStay(test *testing.T, checkIn string, checkOut string) availability.StayRange {
	test.Helper()
	stay, err := availability.NewStayRange(mustDate(test, checkIn), mustDate(test, checkOut))
	if err != nil {
		test.Fatalf("new stay range: %v", err)
	}
	return stay
}

func mustUnitID(test *testing.T, raw string) availability.UnitID {
	test.Helper()
	unitID, err := availability.NewUnitID(raw)
	if err != nil {
		test.Fatalf("new unit id: %v", err)
	}
	return unitID
}

func mustReservation(test *testing.T, id string, unit string, checkIn string, checkOut string, status availability.ReservationStatus) availability.Reservation {
	test.Helper()
	reservationID, err := availability.NewReservationID(id)
	if err != nil {
		test.Fatalf("new reservation id: %v", err)
	}
	guests, err := availability.NewGuestCount(2)
	if err != nil {
		test.Fatalf("new guest count: %v", err)
	}
	return availability.Reservation{
		ID:     reservationID,
		UnitID: mustUnitID(test, unit),
		Stay:   mustStay(test, checkIn, checkOut),
		Guests: guests,
		Status: status,
	}
}

func mustInvoiceID(test *testing.T, raw string) billing.InvoiceID {
	test.Helper()
	invoiceID, err := billing.NewInvoiceID(raw)
	if err != nil {
		test.Fatalf("new invoice id: %v", err)
	}
	return invoiceID
}

func mustCustomerID(test *testing.T, raw string) billing.CustomerID {
	test.Helper()
	customerID, err := billing.NewCustomerID(raw)
	if err != nil {
		test.Fatalf("new customer id: %v", err)
	}
	return customerID
}

func mustPayment(test *testing.T, id string, invoiceID string, customerID string, cents int64, paidAt string, idempotencyKey string) billing.Payment {
	test.Helper()
	paymentID, err := billing.NewPaymentID(id)
	if err != nil {
		test.Fatalf("new payment id: %v", err)
	}
	key, err := billing.NewIdempotencyKey(idempotencyKey)
	if err != nil {
		test.Fatalf("new idempotency key: %v", err)
	}
	metadata, err := billing.NewMetadataJSON(`{"channel":"admin"}`)
	if err != nil {
		test.Fatalf("new metadata: %v", err)
	}
	return billing.Payment{
		ID:             paymentID,
		InvoiceID:      mustInvoiceID(test, invoiceID),
		CustomerID:     mustCustomerID(test, customerID),
		Amount:         money.FromCents(cents),
		Date:           mustDate(test, paidAt),
		Method:         billing.PaymentMethodBankTransfer,
		Reference:      "wire-001",
		Description:    "installment",
		Metadata:       metadata,
		IdempotencyKey: key,
	}
}

func seedInvoice(test *testing.T, database *gorm.DB, invoiceID string, customerID string, totalCents int64) {
	test.Helper()
	now := time.Now().UTC()
	row := gormstore.Invoice{
		InvoiceID:  invoiceID,
		CustomerID: customerID,
		Number:     "INV-" + invoiceID,
		TotalCents: totalCents,
		Status:     billing.InvoiceStatusSent.String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := database.Create(&row).Error; err != nil {
		test.Fatalf("seed invoice: %v", err)
	}
}

func seedCustomer(test *testing.T, database *gorm.DB, customerID string, email string) {
	test.Helper()
	row := gormstore.Customer{
		CustomerID: customerID,
		FirstName:  "Jamie",
		LastName:   "Doe",
		Email:      email,
		CreatedAt:  time.Now().UTC(),
	}
	if err := database.Create(&row).Error; err != nil {
		test.Fatalf("seed customer: %v", err)
	}
}

func TestAvailabilityStoreListBlocking(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewAvailabilityStore(database)
	ctx := context.Background()

	seedCustomer(t, database, "customer-1", "jamie@example.com")

	blocking := mustReservation(t, "res-blocking", "unit-1", "2025-03-01", "2025-03-05", availability.ReservationStatusConfirmed)
	blocking.CustomerID = "customer-1"
	later := mustReservation(t, "res-later", "unit-1", "2025-03-10", "2025-03-12", availability.ReservationStatusActive)
	pending := mustReservation(t, "res-pending", "unit-1", "2025-03-02", "2025-03-06", availability.ReservationStatusPending)
	otherUnit := mustReservation(t, "res-other-unit", "unit-2", "2025-03-01", "2025-03-05", availability.ReservationStatusConfirmed)
	adjacent := mustReservation(t, "res-adjacent", "unit-1", "2025-02-25", "2025-03-01", availability.ReservationStatusConfirmed)
	for _, reservation := range []availability.Reservation{later, blocking, pending, otherUnit, adjacent} {
		if err := store.InsertReservation(ctx, reservation); err != nil {
			t.Fatalf("insert reservation %s: %v", reservation.ID.String(), err)
		}
	}

	listed, err := store.ListBlocking(ctx, mustUnitID(t, "unit-1"), mustStay(t, "2025-03-01", "2025-03-11"))
	if err != nil {
		t.Fatalf("list blocking: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 blocking reservations, got %d", len(listed))
	}
	if listed[0].ID.String() != "res-blocking" || listed[1].ID.String() != "res-later" {
		t.Fatalf("unexpected order: %s, %s", listed[0].ID.String(), listed[1].ID.String())
	}
	if listed[0].Customer.Email != "jamie@example.com" {
		t.Fatalf("expected joined customer email, got %q", listed[0].Customer.Email)
	}
	if listed[0].Stay.String() != "2025-03-01..2025-03-05" {
		t.Fatalf("unexpected stay: %s", listed[0].Stay.String())
	}
}

func TestAvailabilityStoreGetReservation(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewAvailabilityStore(database)
	ctx := context.Background()

	reservation := mustReservation(t, "res-1", "unit-1", "2025-04-01", "2025-04-04", availability.ReservationStatusPending)
	if err := store.InsertReservation(ctx, reservation); err != nil {
		t.Fatalf("insert reservation: %v", err)
	}

	loaded, err := store.GetReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if loaded.UnitID.String() != "unit-1" || loaded.Status != availability.ReservationStatusPending || loaded.Guests.Int() != 2 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	missingID, err := availability.NewReservationID("missing")
	if err != nil {
		t.Fatalf("new reservation id: %v", err)
	}
	if _, err := store.GetReservation(ctx, missingID); !errors.Is(err, availability.ErrUnknownReservation) {
		t.Fatalf("expected ErrUnknownReservation, got %v", err)
	}
}

func TestAvailabilityStoreInsertDuplicate(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewAvailabilityStore(database)
	ctx := context.Background()

	reservation := mustReservation(t, "res-dup", "unit-1", "2025-04-01", "2025-04-04", availability.ReservationStatusPending)
	if err := store.InsertReservation(ctx, reservation); err != nil {
		t.Fatalf("insert reservation: %v", err)
	}
	if err := store.InsertReservation(ctx, reservation); !errors.Is(err, availability.ErrReservationExists) {
		t.Fatalf("expected ErrReservationExists, got %v", err)
	}
}

func TestAvailabilityStoreUpdateReservationStatus(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewAvailabilityStore(database)
	ctx := context.Background()

	reservation := mustReservation(t, "res-1", "unit-1", "2025-04-01", "2025-04-04", availability.ReservationStatusPending)
	if err := store.InsertReservation(ctx, reservation); err != nil {
		t.Fatalf("insert reservation: %v", err)
	}

	err := store.UpdateReservationStatus(ctx, reservation.ID, availability.ReservationStatusPending, availability.ReservationStatusConfirmed)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	loaded, err := store.GetReservation(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if loaded.Status != availability.ReservationStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", loaded.Status)
	}

	err = store.UpdateReservationStatus(ctx, reservation.ID, availability.ReservationStatusPending, availability.ReservationStatusConfirmed)
	if !errors.Is(err, availability.ErrReservationNotPending) {
		t.Fatalf("expected ErrReservationNotPending on stale transition, got %v", err)
	}
}

func TestAvailabilityStoreLockUnitInTransaction(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewAvailabilityStore(database)
	ctx := context.Background()

	reservation := mustReservation(t, "res-1", "unit-1", "2025-04-01", "2025-04-04", availability.ReservationStatusConfirmed)
	err := store.WithTx(ctx, func(ctx context.Context, txStore availability.Store) error {
		if err := txStore.LockUnit(ctx, reservation.UnitID); err != nil {
			return err
		}
		return txStore.InsertReservation(ctx, reservation)
	})
	if err != nil {
		t.Fatalf("locked insert: %v", err)
	}

	if _, err := store.GetReservation(ctx, reservation.ID); err != nil {
		t.Fatalf("get reservation: %v", err)
	}
}

func TestBillingStorePaymentLifecycle(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewBillingStore(database)
	ctx := context.Background()

	seedInvoice(t, database, "invoice-1", "customer-1", 100000)

	first := mustPayment(t, "payment-1", "invoice-1", "customer-1", 40000, "2025-03-01", "key-1")
	second := mustPayment(t, "payment-2", "invoice-1", "customer-1", 60000, "2025-03-05", "key-2")
	if err := store.InsertPayment(ctx, first); err != nil {
		t.Fatalf("insert first payment: %v", err)
	}
	if err := store.InsertPayment(ctx, second); err != nil {
		t.Fatalf("insert second payment: %v", err)
	}

	replay := mustPayment(t, "payment-3", "invoice-1", "customer-1", 40000, "2025-03-06", "key-1")
	if err := store.InsertPayment(ctx, replay); !errors.Is(err, billing.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}

	loaded, err := store.GetPayment(ctx, first.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if !loaded.Amount.Equal(money.FromCents(40000)) || loaded.Reference != "wire-001" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Metadata.String() != `{"channel":"admin"}` {
		t.Fatalf("unexpected metadata: %s", loaded.Metadata.String())
	}

	listed, err := store.ListPayments(ctx, mustInvoiceID(t, "invoice-1"))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(listed) != 2 || listed[0].ID.String() != "payment-2" {
		t.Fatalf("expected newest payment first, got %+v", listed)
	}

	byCustomer, err := store.ListPaymentsByCustomer(ctx, mustCustomerID(t, "customer-1"))
	if err != nil {
		t.Fatalf("list payments by customer: %v", err)
	}
	if len(byCustomer) != 2 {
		t.Fatalf("expected 2 customer payments, got %d", len(byCustomer))
	}

	if err := store.DeletePayment(ctx, first.ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if err := store.DeletePayment(ctx, first.ID); !errors.Is(err, billing.ErrUnknownPayment) {
		t.Fatalf("expected ErrUnknownPayment on second delete, got %v", err)
	}
}

func TestBillingStoreInvoiceTotals(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewBillingStore(database)
	ctx := context.Background()

	seedInvoice(t, database, "invoice-1", "customer-1", 100000)

	err := store.UpdateInvoiceTotals(ctx, mustInvoiceID(t, "invoice-1"), money.FromCents(40000), billing.InvoiceStatusPartiallyPaid)
	if err != nil {
		t.Fatalf("update invoice totals: %v", err)
	}
	invoice, err := store.GetInvoice(ctx, mustInvoiceID(t, "invoice-1"))
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if !invoice.TotalPaid.Equal(money.FromCents(40000)) || invoice.Status != billing.InvoiceStatusPartiallyPaid {
		t.Fatalf("unexpected invoice state: %+v", invoice)
	}

	err = store.UpdateInvoiceTotals(ctx, mustInvoiceID(t, "missing"), money.Zero(), billing.InvoiceStatusSent)
	if !errors.Is(err, billing.ErrUnknownInvoice) {
		t.Fatalf("expected ErrUnknownInvoice, got %v", err)
	}

	if _, err := store.GetInvoice(ctx, mustInvoiceID(t, "missing")); !errors.Is(err, billing.ErrUnknownInvoice) {
		t.Fatalf("expected ErrUnknownInvoice on get, got %v", err)
	}
}

func TestBillingStoreCredits(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewBillingStore(database)
	ctx := context.Background()

	customerID := mustCustomerID(t, "customer-1")
	oldCreditID, err := billing.NewCreditID("credit-old")
	if err != nil {
		t.Fatalf("new credit id: %v", err)
	}
	newCreditID, err := billing.NewCreditID("credit-new")
	if err != nil {
		t.Fatalf("new credit id: %v", err)
	}
	oldCredit := billing.CustomerCredit{
		ID:              oldCreditID,
		CustomerID:      customerID,
		Amount:          money.FromCents(12000),
		RemainingAmount: money.FromCents(12000),
		SourceInvoiceID: mustInvoiceID(t, "invoice-old"),
		Description:     "Overpayment from invoice INV-001",
		Active:          true,
		CreatedAt:       mustDate(t, "2025-01-01"),
	}
	newCredit := billing.CustomerCredit{
		ID:              newCreditID,
		CustomerID:      customerID,
		Amount:          money.FromCents(10000),
		RemainingAmount: money.FromCents(10000),
		Active:          true,
		CreatedAt:       mustDate(t, "2025-02-01"),
	}
	if err := store.InsertCredit(ctx, newCredit); err != nil {
		t.Fatalf("insert new credit: %v", err)
	}
	if err := store.InsertCredit(ctx, oldCredit); err != nil {
		t.Fatalf("insert old credit: %v", err)
	}

	credits, err := store.ListActiveCreditsForUpdate(ctx, customerID)
	if err != nil {
		t.Fatalf("list active credits: %v", err)
	}
	if len(credits) != 2 || credits[0].ID.String() != "credit-old" {
		t.Fatalf("expected oldest credit first, got %+v", credits)
	}
	if credits[0].SourceInvoiceID.String() != "invoice-old" {
		t.Fatalf("expected source invoice preserved, got %q", credits[0].SourceInvoiceID.String())
	}

	consumed := credits[0]
	consumed.RemainingAmount = money.Zero()
	consumed.Active = false
	if err := store.UpdateCredit(ctx, consumed); err != nil {
		t.Fatalf("update credit: %v", err)
	}

	balance, err := store.SumActiveCredits(ctx, customerID)
	if err != nil {
		t.Fatalf("sum active credits: %v", err)
	}
	if !balance.Equal(money.FromCents(10000)) {
		t.Fatalf("expected 100.00 balance, got %s", balance.String())
	}

	remaining, err := store.ListActiveCreditsForUpdate(ctx, customerID)
	if err != nil {
		t.Fatalf("list active credits: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID.String() != "credit-new" {
		t.Fatalf("expected only the newer credit active, got %+v", remaining)
	}
}

func TestBillingStoreWithTxRollsBack(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	store := gormstore.NewBillingStore(database)
	ctx := context.Background()

	seedInvoice(t, database, "invoice-1", "customer-1", 100000)
	rollbackCause := errors.New("rollback")

	err := store.WithTx(ctx, func(ctx context.Context, txStore billing.Store) error {
		payment := mustPayment(t, "payment-1", "invoice-1", "customer-1", 40000, "2025-03-01", "key-1")
		if err := txStore.InsertPayment(ctx, payment); err != nil {
			return err
		}
		return rollbackCause
	})
	if !errors.Is(err, rollbackCause) {
		t.Fatalf("expected rollback cause, got %v", err)
	}

	listed, err := store.ListPayments(ctx, mustInvoiceID(t, "invoice-1"))
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected rolled back payment, found %d rows", len(listed))
	}
}

func TestBillingStoreConcurrentPaymentsSerialize(t *testing.T) {
	t.Parallel()
	database := openTestDatabase(t)
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	store := gormstore.NewBillingStore(database)
	now := mustDate(t, "2025-03-01")
	service, err := billing.NewService(store, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	seedInvoice(t, database, "invoice-1", "customer-1", 100000)

	var group sync.WaitGroup
	recordErrs := make([]error, 2)
	for index := range recordErrs {
		group.Add(1)
		go func(index int) {
			defer group.Done()
			key, keyErr := billing.NewIdempotencyKey(fmt.Sprintf("wire-%d", index))
			if keyErr != nil {
				recordErrs[index] = keyErr
				return
			}
			_, recordErrs[index] = service.RecordPayment(ctx, billing.RecordPaymentInput{
				InvoiceID:      mustInvoiceID(t, "invoice-1"),
				CustomerID:     mustCustomerID(t, "customer-1"),
				Amount:         money.FromCents(60000),
				IdempotencyKey: key,
			})
		}(index)
	}
	group.Wait()
	for index, recordErr := range recordErrs {
		if recordErr != nil {
			t.Fatalf("record payment %d: %v", index, recordErr)
		}
	}

	invoice, err := store.GetInvoice(ctx, mustInvoiceID(t, "invoice-1"))
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if !invoice.TotalPaid.Equal(money.FromCents(120000)) {
		t.Fatalf("expected both payments in totalPaid, got %s", invoice.TotalPaid.String())
	}
	if invoice.Status != billing.InvoiceStatusPaid {
		t.Fatalf("expected PAID after full coverage, got %s", invoice.Status)
	}
	credits, err := store.ListActiveCreditsForUpdate(ctx, mustCustomerID(t, "customer-1"))
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(credits) != 1 || !credits[0].RemainingAmount.Equal(money.FromCents(20000)) {
		t.Fatalf("expected one 200.00 overpayment credit, got %+v", credits)
	}
}

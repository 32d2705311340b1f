package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service contains the availability domain logic over a Store.
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

// CheckConflict reports every CONFIRMED or ACTIVE reservation overlapping the
// requested stay, plus alternative open windows when conflicts exist. A store
// failure propagates to the caller; it is never reported as "no conflict".
func (service *Service) CheckConflict(ctx context.Context, unitID UnitID, stay StayRange, guests GuestCount) (ConflictResult, error) {
	if stay.IsZero() {
		return ConflictResult{}, fmt.Errorf("%w: empty stay range", ErrInvalidStayRange)
	}
	if guests <= 0 {
		return ConflictResult{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidGuestCount)
	}
	conflicts, err := service.store.ListBlocking(ctx, unitID, stay)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationCheckConflict, UnitID: unitID, Stay: stay, Error: err})
		return ConflictResult{}, err
	}
	result := ConflictResult{HasConflict: len(conflicts) > 0, Conflicts: conflicts}
	if result.HasConflict {
		alternatives, err := service.FindAlternatives(ctx, unitID, stay.Nights(), stay.CheckIn())
		if err != nil {
			service.logOperation(ctx, OperationLog{Operation: operationCheckConflict, UnitID: unitID, Stay: stay, Error: err})
			return ConflictResult{}, err
		}
		result.Alternatives = alternatives
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCheckConflict,
		UnitID:    unitID,
		Stay:      stay,
		Conflicts: len(result.Conflicts),
	})
	return result, nil
}

// FindAlternatives walks the unit's blocking intervals within the search
// horizon and proposes up to MaxAlternatives maximal open windows of at least
// the requested duration, in chronological order.
func (service *Service) FindAlternatives(ctx context.Context, unitID UnitID, durationNights int, searchStart time.Time) ([]StayRange, error) {
	if durationNights <= 0 {
		return nil, fmt.Errorf("%w: must be at least one night", ErrInvalidDuration)
	}
	if searchStart.IsZero() {
		searchStart = service.nowFn()
	}
	start := truncateToDay(searchStart)
	horizonEnd := start.AddDate(0, 0, DefaultHorizonDays)
	window := StayRange{checkIn: start, checkOut: horizonEnd}
	blocking, err := service.store.ListBlocking(ctx, unitID, window)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationFindAlternatives, UnitID: unitID, Stay: window, Error: err})
		return nil, err
	}
	alternatives := openWindows(blocking, start, horizonEnd, durationNights)
	service.logOperation(ctx, OperationLog{
		Operation: operationFindAlternatives,
		UnitID:    unitID,
		Stay:      window,
		Conflicts: len(blocking),
	})
	return alternatives, nil
}

// openWindows performs the greedy gap search over sorted blocking intervals.
// The cursor starts at the search start; each interval either closes a gap
// (emitting it when long enough) or pushes the cursor past its checkout day.
func openWindows(blocking []Reservation, searchStart time.Time, horizonEnd time.Time, durationNights int) []StayRange {
	sorted := make([]Reservation, len(blocking))
	copy(sorted, blocking)
	sort.Slice(sorted, func(left, right int) bool {
		return sorted[left].Stay.CheckIn().Before(sorted[right].Stay.CheckIn())
	})

	windows := make([]StayRange, 0, MaxAlternatives)
	cursor := searchStart
	for _, reservation := range sorted {
		if len(windows) == MaxAlternatives {
			return windows
		}
		gapNights := nightsBetween(cursor, reservation.Stay.CheckIn())
		if gapNights >= durationNights {
			windows = append(windows, StayRange{checkIn: cursor, checkOut: reservation.Stay.CheckIn()})
		}
		if reservation.Stay.CheckOut().After(cursor) {
			cursor = reservation.Stay.CheckOut()
		}
	}
	if len(windows) < MaxAlternatives && nightsBetween(cursor, horizonEnd) >= durationNights {
		windows = append(windows, StayRange{checkIn: cursor, checkOut: horizonEnd})
	}
	return windows
}

func nightsBetween(from time.Time, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}

// CreateReservationInput collects the fields needed to record a new interval.
type CreateReservationInput struct {
	ID         ReservationID
	UnitID     UnitID
	Stay       StayRange
	Guests     GuestCount
	Status     ReservationStatus
	CustomerID string
	Customer   CustomerRef
}

// CreateReservation inserts a new interval. The transaction takes the unit's
// write lock before re-validating overlap, so two concurrent bookings on the
// same unit cannot both observe an empty calendar and both insert.
func (service *Service) CreateReservation(ctx context.Context, input CreateReservationInput) (Reservation, error) {
	if input.Stay.IsZero() {
		return Reservation{}, fmt.Errorf("%w: empty stay range", ErrInvalidStayRange)
	}
	if input.Guests <= 0 {
		return Reservation{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidGuestCount)
	}
	status := input.Status
	if status == "" {
		status = ReservationStatusPending
	}
	if status != ReservationStatusPending && status != ReservationStatusConfirmed {
		return Reservation{}, fmt.Errorf("%w: new reservations start PENDING or CONFIRMED", ErrInvalidReservationStatus)
	}
	reservation := Reservation{
		ID:         input.ID,
		UnitID:     input.UnitID,
		Stay:       input.Stay,
		Guests:     input.Guests,
		Status:     status,
		CustomerID: input.CustomerID,
		Customer:   input.Customer,
	}
	if reservation.ID == (ReservationID{}) {
		reservation.ID = ReservationID{value: uuid.NewString()}
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := transactionStore.LockUnit(ctx, input.UnitID); err != nil {
			return err
		}
		conflicts, err := transactionStore.ListBlocking(ctx, input.UnitID, input.Stay)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: %d overlapping booking(s)", ErrDatesUnavailable, len(conflicts))
		}
		return transactionStore.InsertReservation(ctx, reservation)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreateReservation,
		UnitID:        input.UnitID,
		ReservationID: reservation.ID,
		Stay:          input.Stay,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return reservation, nil
}

// ConfirmReservation promotes a PENDING interval to CONFIRMED, taking the
// unit's write lock and re-checking overlap in the same transaction because
// provisional holds were never exclusive.
func (service *Service) ConfirmReservation(ctx context.Context, reservationID ReservationID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != ReservationStatusPending {
			return fmt.Errorf("%w: status is %s", ErrReservationNotPending, reservation.Status)
		}
		if err := transactionStore.LockUnit(ctx, reservation.UnitID); err != nil {
			return err
		}
		conflicts, err := transactionStore.ListBlocking(ctx, reservation.UnitID, reservation.Stay)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: %d overlapping booking(s)", ErrDatesUnavailable, len(conflicts))
		}
		return transactionStore.UpdateReservationStatus(ctx, reservationID, ReservationStatusPending, ReservationStatusConfirmed)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationConfirmReservation,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

// CancelReservation moves a non-terminal interval to CANCELLED, releasing the
// dates it blocked.
func (service *Service) CancelReservation(ctx context.Context, reservationID ReservationID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status.Terminal() {
			return fmt.Errorf("%w: status is %s", ErrReservationTerminal, reservation.Status)
		}
		return transactionStore.UpdateReservationStatus(ctx, reservationID, reservation.Status, ReservationStatusCancelled)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancelReservation,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
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

package availability

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UnitID identifies a bookable accommodation unit.
type UnitID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// GuestCount is a validated party size.
type GuestCount int

// CustomerRef carries the customer details shown alongside a conflicting
// booking in the admin surface.
type CustomerRef struct {
	FirstName string
	LastName  string
	Email     string
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// StayRange is a half-open [CheckIn, CheckOut) range of calendar dates.
// A checkout day is free for a same-day check-in.
type StayRange struct {
	checkIn  time.Time
	checkOut time.Time
}

// Reservation is a stored reservation interval.
type Reservation struct {
	ID         ReservationID
	UnitID     UnitID
	Stay       StayRange
	Guests     GuestCount
	Status     ReservationStatus
	CustomerID string
	Customer   CustomerRef
}

// ConflictResult reports overlapping bookings for a requested stay and, when
// conflicts exist, alternative open windows of the same duration.
type ConflictResult struct {
	HasConflict  bool
	Conflicts    []Reservation
	Alternatives []StayRange
}

// NewUnitID validates and normalizes a unit id.
func NewUnitID(raw string) (UnitID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UnitID{}, fmt.Errorf("%w: empty value", ErrInvalidUnitID)
	}
	return UnitID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UnitID) String() string {
	return id.value
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ReservationID{}, fmt.Errorf("%w: empty value", ErrInvalidReservationID)
	}
	return ReservationID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ReservationID) String() string {
	return id.value
}

// NewGuestCount validates a party size.
func NewGuestCount(raw int) (GuestCount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidGuestCount)
	}
	return GuestCount(raw), nil
}

// Int returns the raw count.
func (count GuestCount) Int() int {
	return int(count)
}

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch status := ReservationStatus(raw); status {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusActive,
		ReservationStatusCancelled, ReservationStatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the stored status value.
func (status ReservationStatus) String() string {
	return string(status)
}

// Blocks reports whether intervals in this status exclude other bookings.
// Provisional PENDING holds never block.
func (status ReservationStatus) Blocks() bool {
	return status == ReservationStatusConfirmed || status == ReservationStatusActive
}

// Terminal reports whether the status admits no further transitions.
func (status ReservationStatus) Terminal() bool {
	return status == ReservationStatusCancelled || status == ReservationStatusCompleted
}

// NewStayRange validates a half-open date range, normalizing both bounds to
// UTC midnight. The check-in must fall strictly before the check-out.
func NewStayRange(checkIn time.Time, checkOut time.Time) (StayRange, error) {
	start := truncateToDay(checkIn)
	end := truncateToDay(checkOut)
	if !start.Before(end) {
		return StayRange{}, fmt.Errorf("%w: check-in %s is not before check-out %s",
			ErrInvalidStayRange, start.Format(dateLayout), end.Format(dateLayout))
	}
	return StayRange{checkIn: start, checkOut: end}, nil
}

// CheckIn returns the first occupied day.
func (stay StayRange) CheckIn() time.Time {
	return stay.checkIn
}

// CheckOut returns the day the unit becomes free again.
func (stay StayRange) CheckOut() time.Time {
	return stay.checkOut
}

// Nights returns the number of occupied nights.
func (stay StayRange) Nights() int {
	return int(stay.checkOut.Sub(stay.checkIn) / (24 * time.Hour))
}

// Overlaps reports whether two half-open ranges share an occupied day:
// [s1,e1) and [s2,e2) conflict iff s1 < e2 and s2 < e1.
func (stay StayRange) Overlaps(other StayRange) bool {
	return stay.checkIn.Before(other.checkOut) && other.checkIn.Before(stay.checkOut)
}

// IsZero reports whether the range was never constructed.
func (stay StayRange) IsZero() bool {
	return stay.checkIn.IsZero() && stay.checkOut.IsZero()
}

// String renders the range as "2025-03-01..2025-03-05".
func (stay StayRange) String() string {
	return stay.checkIn.Format(dateLayout) + ".." + stay.checkOut.Format(dateLayout)
}

func truncateToDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// Store is the persistence contract used by Service. LockUnit must serialize
// writers on a unit until the enclosing transaction commits; without it, two
// concurrent overlap re-checks can both see an empty calendar and both insert.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	LockUnit(ctx context.Context, unitID UnitID) error
	ListBlocking(ctx context.Context, unitID UnitID, window StayRange) ([]Reservation, error)
	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from ReservationStatus, to ReservationStatus) error
}

package availability

import "errors"

// Domain-level error values returned by the availability service.
var (
	ErrDatesUnavailable         = errors.New("dates unavailable")
	ErrUnknownReservation       = errors.New("unknown reservation")
	ErrReservationExists        = errors.New("reservation already exists")
	ErrReservationNotPending    = errors.New("reservation not pending")
	ErrReservationTerminal      = errors.New("reservation already terminal")
	ErrInvalidUnitID            = errors.New("invalid unit id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidStayRange         = errors.New("invalid stay range")
	ErrInvalidGuestCount        = errors.New("invalid guest count")
	ErrInvalidDuration          = errors.New("invalid duration")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

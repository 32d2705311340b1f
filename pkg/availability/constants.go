package availability

const (
	operationCheckConflict      = "check_conflict"
	operationFindAlternatives   = "find_alternatives"
	operationCreateReservation  = "create_reservation"
	operationConfirmReservation = "confirm_reservation"
	operationCancelReservation  = "cancel_reservation"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	dateLayout = "2006-01-02"

	// DefaultHorizonDays bounds the alternative-date search window.
	DefaultHorizonDays = 90

	// MaxAlternatives caps how many open windows are proposed.
	MaxAlternatives = 5
)

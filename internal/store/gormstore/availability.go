package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/veldstays/backoffice/pkg/availability"
)

// AvailabilityStore implements availability.Store using GORM.
type AvailabilityStore struct {
	db *gorm.DB
}

// NewAvailabilityStore returns an AvailabilityStore backed by gorm.DB.
func NewAvailabilityStore(db *gorm.DB) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *AvailabilityStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore availability.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &AvailabilityStore{db: transaction})
	})
}

// LockUnit serializes writers on a unit for the rest of the transaction.
// READ COMMITTED lets two overlap re-checks both see an empty calendar, and
// row locks cannot cover rows that do not exist yet, so the unit itself is
// the lock key. SQLite needs nothing: its write lock spans the database.
func (store *AvailabilityStore) LockUnit(ctx context.Context, unitID availability.UnitID) error {
	if store.db.Dialector.Name() != dialectPostgres {
		return nil
	}
	err := store.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", unitID.String()).Error
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeLock, err)
	}
	return nil
}

// ListBlocking returns CONFIRMED and ACTIVE reservations on the unit whose
// half-open stay overlaps the window, ordered by check-in.
func (store *AvailabilityStore) ListBlocking(ctx context.Context, unitID availability.UnitID, window availability.StayRange) ([]availability.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Joins("Customer").
		Where("reservations.unit_id = ?", unitID.String()).
		Where("reservations.status IN ?", []string{
			availability.ReservationStatusConfirmed.String(),
			availability.ReservationStatusActive.String(),
		}).
		Where("reservations.check_in < ? AND ? < reservations.check_out", window.CheckOut(), window.CheckIn()).
		Order("reservations.check_in ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]availability.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// InsertReservation persists a new reservation row.
func (store *AvailabilityStore) InsertReservation(ctx context.Context, reservation availability.Reservation) error {
	now := time.Now().UTC()
	model := Reservation{
		ReservationID: reservation.ID.String(),
		UnitID:        reservation.UnitID.String(),
		CheckIn:       reservation.Stay.CheckIn(),
		CheckOut:      reservation.Stay.CheckOut(),
		Guests:        reservation.Guests.Int(),
		Status:        reservation.Status.String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if reservation.CustomerID != "" {
		customerID := reservation.CustomerID
		model.CustomerID = &customerID
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, availability.ErrReservationExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

// GetReservation loads a reservation, locking the row inside a transaction.
func (store *AvailabilityStore) GetReservation(ctx context.Context, reservationID availability.ReservationID) (availability.Reservation, error) {
	var row Reservation
	err := lockForUpdate(store.db.WithContext(ctx)).
		Where("reservation_id = ?", reservationID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return availability.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, availability.ErrUnknownReservation)
		}
		return availability.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	reservation, err := mapReservation(row)
	if err != nil {
		return availability.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

// UpdateReservationStatus transitions a reservation from one status to
// another. The guarded WHERE keeps the transition atomic under concurrency.
func (store *AvailabilityStore) UpdateReservationStatus(ctx context.Context, reservationID availability.ReservationID, from availability.ReservationStatus, to availability.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ? AND status = ?", reservationID.String(), from.String()).
		Updates(map[string]interface{}{"status": to.String(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, availability.ErrReservationNotPending)
	}
	return nil
}

func mapReservation(row Reservation) (availability.Reservation, error) {
	reservationID, err := availability.NewReservationID(row.ReservationID)
	if err != nil {
		return availability.Reservation{}, err
	}
	unitID, err := availability.NewUnitID(row.UnitID)
	if err != nil {
		return availability.Reservation{}, err
	}
	stay, err := availability.NewStayRange(row.CheckIn, row.CheckOut)
	if err != nil {
		return availability.Reservation{}, err
	}
	guests, err := availability.NewGuestCount(row.Guests)
	if err != nil {
		return availability.Reservation{}, err
	}
	status, err := availability.ParseReservationStatus(row.Status)
	if err != nil {
		return availability.Reservation{}, err
	}
	var customer availability.CustomerRef
	if row.Customer != nil {
		customer = availability.CustomerRef{
			FirstName: row.Customer.FirstName,
			LastName:  row.Customer.LastName,
			Email:     row.Customer.Email,
		}
	}
	var customerID string
	if row.CustomerID != nil {
		customerID = *row.CustomerID
	}
	return availability.Reservation{
		ID:         reservationID,
		UnitID:     unitID,
		Stay:       stay,
		Guests:     guests,
		Status:     status,
		CustomerID: customerID,
		Customer:   customer,
	}, nil
}

package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer mirrors the customers table.
type Customer struct {
	CustomerID string `gorm:"type:uuid;primaryKey"`
	FirstName  string
	LastName   string
	Email      string    `gorm:"index"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (Customer) TableName() string { return "customers" }

func (customer *Customer) BeforeCreate(tx *gorm.DB) error {
	if customer.CustomerID == "" {
		customer.CustomerID = uuid.NewString()
	}
	return nil
}

// Reservation mirrors the reservations table.
type Reservation struct {
	ReservationID string    `gorm:"type:uuid;primaryKey"`
	UnitID        string    `gorm:"not null;index:idx_reservations_unit_check_in,priority:1"`
	CheckIn       time.Time `gorm:"not null;index:idx_reservations_unit_check_in,priority:2"`
	CheckOut      time.Time `gorm:"not null"`
	Guests        int       `gorm:"not null"`
	Status        string    `gorm:"not null;index"`
	CustomerID    *string   `gorm:"index"`
	Customer      *Customer `gorm:"foreignKey:CustomerID;references:CustomerID"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

func (reservation *Reservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ReservationID == "" {
		reservation.ReservationID = uuid.NewString()
	}
	return nil
}

// Invoice mirrors the invoices table. Amounts are stored in integer cents.
type Invoice struct {
	InvoiceID      string    `gorm:"type:uuid;primaryKey"`
	CustomerID     string    `gorm:"not null;index"`
	Number         string    `gorm:""`
	TotalCents     int64     `gorm:"not null"`
	TotalPaidCents int64     `gorm:"not null"`
	Status         string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) error {
	if invoice.InvoiceID == "" {
		invoice.InvoiceID = uuid.NewString()
	}
	return nil
}

// Payment mirrors the payments table.
type Payment struct {
	PaymentID      string         `gorm:"type:uuid;primaryKey"`
	InvoiceID      string         `gorm:"type:uuid;not null;index:idx_payments_invoice_paid_at,priority:1"`
	CustomerID     string         `gorm:"not null;index"`
	AmountCents    int64          `gorm:"not null"`
	PaidAt         time.Time      `gorm:"not null;index:idx_payments_invoice_paid_at,priority:2"`
	Method         string         `gorm:"not null"`
	Reference      string         `gorm:""`
	Description    string         `gorm:""`
	Metadata       datatypes.JSON `gorm:"not null"`
	IdempotencyKey string         `gorm:"not null;index:uniq_payments_idempotency_key,unique"`
	CreatedAt      time.Time      `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

func (payment *Payment) BeforeCreate(tx *gorm.DB) error {
	if payment.PaymentID == "" {
		payment.PaymentID = uuid.NewString()
	}
	return nil
}

// CustomerCredit mirrors the customer_credits table.
type CustomerCredit struct {
	CreditID             string    `gorm:"type:uuid;primaryKey"`
	CustomerID           string    `gorm:"not null;index:idx_credits_customer_active,priority:1"`
	AmountCents          int64     `gorm:"not null"`
	RemainingAmountCents int64     `gorm:"not null"`
	SourceInvoiceID      string    `gorm:"type:uuid"`
	Description          string    `gorm:""`
	Active               bool      `gorm:"not null;index:idx_credits_customer_active,priority:2"`
	CreatedAt            time.Time `gorm:"not null;index"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (CustomerCredit) TableName() string { return "customer_credits" }

func (credit *CustomerCredit) BeforeCreate(tx *gorm.DB) error {
	if credit.CreditID == "" {
		credit.CreditID = uuid.NewString()
	}
	return nil
}

// Migrate creates or updates the schema for every table the stores use.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Customer{}, &Reservation{}, &Invoice{}, &Payment{}, &CustomerCredit{})
}

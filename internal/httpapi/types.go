package httpapi

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/veldstays/backoffice/pkg/availability"
	"github.com/veldstays/backoffice/pkg/billing"
)

type checkConflictRequest struct {
	UnitID   string `json:"unit_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
}

type createReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	UnitID        string `json:"unit_id"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Guests        int    `json:"guests"`
	Status        string `json:"status"`
	CustomerID    string `json:"customer_id"`
}

type recordPaymentRequest struct {
	CustomerID     string `json:"customer_id"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	Method         string `json:"method"`
	Reference      string `json:"reference"`
	Description    string `json:"description"`
	Metadata       string `json:"metadata"`
	IdempotencyKey string `json:"idempotency_key"`
}

type applyCreditRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
}

type stayPayload struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Nights   int    `json:"nights"`
}

type customerPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type reservationPayload struct {
	ReservationID string          `json:"reservation_id"`
	UnitID        string          `json:"unit_id"`
	CheckIn       string          `json:"check_in"`
	CheckOut      string          `json:"check_out"`
	Guests        int             `json:"guests"`
	Status        string          `json:"status"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Customer      customerPayload `json:"customer"`
}

type invoicePayload struct {
	InvoiceID  string `json:"invoice_id"`
	CustomerID string `json:"customer_id"`
	Number     string `json:"number"`
	Total      string `json:"total"`
	TotalPaid  string `json:"total_paid"`
	Status     string `json:"status"`
}

type paymentPayload struct {
	PaymentID      string          `json:"payment_id"`
	InvoiceID      string          `json:"invoice_id"`
	CustomerID     string          `json:"customer_id"`
	Amount         string          `json:"amount"`
	Date           string          `json:"date"`
	Method         string          `json:"method"`
	Reference      string          `json:"reference,omitempty"`
	Description    string          `json:"description,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type creditPayload struct {
	CreditID        string `json:"credit_id"`
	CustomerID      string `json:"customer_id"`
	Amount          string `json:"amount"`
	RemainingAmount string `json:"remaining_amount"`
	SourceInvoiceID string `json:"source_invoice_id,omitempty"`
	Description     string `json:"description,omitempty"`
	Active          bool   `json:"active"`
}

func stayPayloadFrom(stay availability.StayRange) stayPayload {
	return stayPayload{
		CheckIn:  stay.CheckIn().Format(dateLayout),
		CheckOut: stay.CheckOut().Format(dateLayout),
		Nights:   stay.Nights(),
	}
}

func stayPayloads(stays []availability.StayRange) []stayPayload {
	payloads := make([]stayPayload, 0, len(stays))
	for _, stay := range stays {
		payloads = append(payloads, stayPayloadFrom(stay))
	}
	return payloads
}

func reservationPayloadFrom(reservation availability.Reservation) reservationPayload {
	return reservationPayload{
		ReservationID: reservation.ID.String(),
		UnitID:        reservation.UnitID.String(),
		CheckIn:       reservation.Stay.CheckIn().Format(dateLayout),
		CheckOut:      reservation.Stay.CheckOut().Format(dateLayout),
		Guests:        reservation.Guests.Int(),
		Status:        reservation.Status.String(),
		CustomerID:    reservation.CustomerID,
		Customer: customerPayload{
			FirstName: reservation.Customer.FirstName,
			LastName:  reservation.Customer.LastName,
			Email:     reservation.Customer.Email,
		},
	}
}

func conflictResultPayload(result availability.ConflictResult) gin.H {
	conflicts := make([]reservationPayload, 0, len(result.Conflicts))
	for _, conflict := range result.Conflicts {
		conflicts = append(conflicts, reservationPayloadFrom(conflict))
	}
	return gin.H{
		"has_conflict": result.HasConflict,
		"conflicts":    conflicts,
		"alternatives": stayPayloads(result.Alternatives),
	}
}

func invoicePayloadFrom(invoice billing.Invoice) invoicePayload {
	return invoicePayload{
		InvoiceID:  invoice.ID.String(),
		CustomerID: invoice.CustomerID.String(),
		Number:     invoice.Number,
		Total:      invoice.Total.String(),
		TotalPaid:  invoice.TotalPaid.String(),
		Status:     invoice.Status.String(),
	}
}

func paymentPayloadFrom(payment billing.Payment) paymentPayload {
	return paymentPayload{
		PaymentID:      payment.ID.String(),
		InvoiceID:      payment.InvoiceID.String(),
		CustomerID:     payment.CustomerID.String(),
		Amount:         payment.Amount.String(),
		Date:           payment.Date.Format(dateLayout),
		Method:         payment.Method.String(),
		Reference:      payment.Reference,
		Description:    payment.Description,
		Metadata:       json.RawMessage(payment.Metadata.String()),
		IdempotencyKey: payment.IdempotencyKey.String(),
	}
}

func paymentPayloads(payments []billing.Payment) []paymentPayload {
	payloads := make([]paymentPayload, 0, len(payments))
	for _, payment := range payments {
		payloads = append(payloads, paymentPayloadFrom(payment))
	}
	return payloads
}

func paymentResultPayload(result billing.PaymentResult) gin.H {
	payload := gin.H{
		"payment": paymentPayloadFrom(result.Payment),
		"invoice": invoicePayloadFrom(result.Invoice),
	}
	if result.Credit != nil {
		payload["credit"] = creditPayload{
			CreditID:        result.Credit.ID.String(),
			CustomerID:      result.Credit.CustomerID.String(),
			Amount:          result.Credit.Amount.String(),
			RemainingAmount: result.Credit.RemainingAmount.String(),
			SourceInvoiceID: result.Credit.SourceInvoiceID.String(),
			Description:     result.Credit.Description,
			Active:          result.Credit.Active,
		}
	}
	return payload
}

// Package httpapi exposes the availability and billing services to the admin
// frontend over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veldstays/backoffice/pkg/availability"
	"github.com/veldstays/backoffice/pkg/billing"
	"github.com/veldstays/backoffice/pkg/money"
)

const dateLayout = "2006-01-02"

// Server wires the HTTP routes to the domain services.
type Server struct {
	logger       *zap.Logger
	availability *availability.Service
	billing      *billing.Service
	cfg          Config
}

// NewServer validates the configuration and returns a Server.
func NewServer(cfg Config, logger *zap.Logger, availabilityService *availability.Service, billingService *billing.Service) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if availabilityService == nil {
		return nil, errors.New("availability service is required")
	}
	if billingService == nil {
		return nil, errors.New("billing service is required")
	}
	return &Server{
		logger:       logger,
		availability: availabilityService,
		billing:      billingService,
		cfg:          cfg,
	}, nil
}

// Run serves the API until the context is cancelled.
func (server *Server) Run(ctx context.Context) error {
	router := server.Router()
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("httpapi listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Router builds the gin engine with middleware and routes attached.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(bearerAuth([]byte(server.cfg.AuthSigningKey), server.cfg.AuthIssuer))

	api.POST("/reservations/check-conflict", server.handleCheckConflict)
	api.POST("/reservations", server.handleCreateReservation)
	api.POST("/reservations/:reservationID/confirm", server.handleConfirmReservation)
	api.POST("/reservations/:reservationID/cancel", server.handleCancelReservation)
	api.GET("/units/:unitID/alternatives", server.handleFindAlternatives)

	api.POST("/invoices/:invoiceID/payments", server.handleRecordPayment)
	api.GET("/invoices/:invoiceID/payments", server.handlePaymentSummary)
	api.DELETE("/payments/:paymentID", server.handleDeletePayment)
	api.POST("/customers/:customerID/apply-credit", server.handleApplyCredit)
	api.GET("/customers/:customerID/credit-balance", server.handleCreditBalance)
	api.GET("/customers/:customerID/payments", server.handleCustomerPayments)

	return router
}

func (server *Server) handleCheckConflict(ctx *gin.Context) {
	var request checkConflictRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	unitID, err := availability.NewUnitID(request.UnitID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_unit_id", err.Error()))
		return
	}
	stay, err := parseStay(request.CheckIn, request.CheckOut)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_stay", err.Error()))
		return
	}
	guests, err := availability.NewGuestCount(request.Guests)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_guests", err.Error()))
		return
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	result, err := server.availability.CheckConflict(requestCtx, unitID, stay, guests)
	if err != nil {
		server.logger.Error("conflict check failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("availability_unverified", "unable to verify availability"))
		return
	}
	ctx.JSON(http.StatusOK, conflictResultPayload(result))
}

func (server *Server) handleFindAlternatives(ctx *gin.Context) {
	unitID, err := availability.NewUnitID(ctx.Param("unitID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_unit_id", err.Error()))
		return
	}
	nights, err := strconv.Atoi(ctx.DefaultQuery("nights", "0"))
	if err != nil || nights <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_nights", "nights must be a positive integer"))
		return
	}
	var searchStart time.Time
	if raw := ctx.Query("from"); raw != "" {
		searchStart, err = time.Parse(dateLayout, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_from", "from must be formatted as YYYY-MM-DD"))
			return
		}
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	alternatives, err := server.availability.FindAlternatives(requestCtx, unitID, nights, searchStart)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"alternatives": stayPayloads(alternatives)})
}

func (server *Server) handleCreateReservation(ctx *gin.Context) {
	var request createReservationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	unitID, err := availability.NewUnitID(request.UnitID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_unit_id", err.Error()))
		return
	}
	stay, err := parseStay(request.CheckIn, request.CheckOut)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_stay", err.Error()))
		return
	}
	guests, err := availability.NewGuestCount(request.Guests)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_guests", err.Error()))
		return
	}
	input := availability.CreateReservationInput{
		UnitID:     unitID,
		Stay:       stay,
		Guests:     guests,
		CustomerID: request.CustomerID,
	}
	if request.ReservationID != "" {
		reservationID, err := availability.NewReservationID(request.ReservationID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reservation_id", err.Error()))
			return
		}
		input.ID = reservationID
	}
	if request.Status != "" {
		status, err := availability.ParseReservationStatus(request.Status)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_status", err.Error()))
			return
		}
		input.Status = status
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	reservation, err := server.availability.CreateReservation(requestCtx, input)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"reservation": reservationPayloadFrom(reservation)})
}

func (server *Server) handleConfirmReservation(ctx *gin.Context) {
	reservationID, err := availability.NewReservationID(ctx.Param("reservationID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reservation_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	if err := server.availability.ConfirmReservation(requestCtx, reservationID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (server *Server) handleCancelReservation(ctx *gin.Context) {
	reservationID, err := availability.NewReservationID(ctx.Param("reservationID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reservation_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	if err := server.availability.CancelReservation(requestCtx, reservationID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (server *Server) handleRecordPayment(ctx *gin.Context) {
	invoiceID, err := billing.NewInvoiceID(ctx.Param("invoiceID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_invoice_id", err.Error()))
		return
	}
	var request recordPaymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	customerID, err := billing.NewCustomerID(request.CustomerID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_customer_id", err.Error()))
		return
	}
	amount, err := money.FromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", err.Error()))
		return
	}
	input := billing.RecordPaymentInput{
		InvoiceID:   invoiceID,
		CustomerID:  customerID,
		Amount:      amount,
		Reference:   request.Reference,
		Description: request.Description,
	}
	if request.Date != "" {
		date, err := time.Parse(dateLayout, request.Date)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "date must be formatted as YYYY-MM-DD"))
			return
		}
		input.Date = date
	}
	if request.Method != "" {
		method, err := billing.ParsePaymentMethod(request.Method)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_method", err.Error()))
			return
		}
		input.Method = method
	}
	if request.Metadata != "" {
		metadata, err := billing.NewMetadataJSON(request.Metadata)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_metadata", err.Error()))
			return
		}
		input.Metadata = metadata
	}
	if request.IdempotencyKey != "" {
		key, err := billing.NewIdempotencyKey(request.IdempotencyKey)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_idempotency_key", err.Error()))
			return
		}
		input.IdempotencyKey = key
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	result, err := server.billing.RecordPayment(requestCtx, input)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, paymentResultPayload(result))
}

func (server *Server) handleApplyCredit(ctx *gin.Context) {
	customerID, err := billing.NewCustomerID(ctx.Param("customerID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_customer_id", err.Error()))
		return
	}
	var request applyCreditRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	invoiceID, err := billing.NewInvoiceID(request.InvoiceID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_invoice_id", err.Error()))
		return
	}
	amount, err := money.FromString(request.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_amount", err.Error()))
		return
	}

	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	result, err := server.billing.ApplyCredit(requestCtx, customerID, invoiceID, amount)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, paymentResultPayload(result))
}

func (server *Server) handlePaymentSummary(ctx *gin.Context) {
	invoiceID, err := billing.NewInvoiceID(ctx.Param("invoiceID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_invoice_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	summary, err := server.billing.PaymentSummary(requestCtx, invoiceID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"total_paid":        summary.TotalPaid.String(),
		"remaining_balance": summary.RemainingBalance.String(),
		"status":            summary.Status.String(),
		"payments":          paymentPayloads(summary.Payments),
	})
}

func (server *Server) handleDeletePayment(ctx *gin.Context) {
	paymentID, err := billing.NewPaymentID(ctx.Param("paymentID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payment_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	invoice, err := server.billing.DeletePayment(requestCtx, paymentID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if claims := getClaims(ctx); claims != nil {
		server.logger.Info("payment deleted",
			zap.String("payment_id", paymentID.String()),
			zap.String("deleted_by", claims.Subject))
	}
	ctx.JSON(http.StatusOK, gin.H{"invoice": invoicePayloadFrom(invoice)})
}

func (server *Server) handleCreditBalance(ctx *gin.Context) {
	customerID, err := billing.NewCustomerID(ctx.Param("customerID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_customer_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	balance, err := server.billing.CreditBalance(requestCtx, customerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance.String()})
}

func (server *Server) handleCustomerPayments(ctx *gin.Context) {
	customerID, err := billing.NewCustomerID(ctx.Param("customerID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_customer_id", err.Error()))
		return
	}
	requestCtx, cancel := server.requestContext(ctx)
	defer cancel()
	payments, err := server.billing.CustomerPayments(requestCtx, customerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payments": paymentPayloads(payments)})
}

func (server *Server) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), server.cfg.RequestTimeout)
}

func (server *Server) respondDomainError(ctx *gin.Context, err error) {
	status, code := classifyDomainError(err)
	if status == http.StatusBadGateway {
		server.logger.Error("request failed", zap.Error(err))
		ctx.JSON(status, errorResponse(code, "upstream operation failed"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func classifyDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, availability.ErrUnknownReservation):
		return http.StatusNotFound, "unknown_reservation"
	case errors.Is(err, billing.ErrUnknownInvoice):
		return http.StatusNotFound, "unknown_invoice"
	case errors.Is(err, billing.ErrUnknownPayment):
		return http.StatusNotFound, "unknown_payment"
	case errors.Is(err, billing.ErrUnknownCustomer):
		return http.StatusNotFound, "unknown_customer"
	case errors.Is(err, availability.ErrDatesUnavailable):
		return http.StatusConflict, "dates_unavailable"
	case errors.Is(err, availability.ErrReservationExists):
		return http.StatusConflict, "reservation_exists"
	case errors.Is(err, availability.ErrReservationNotPending):
		return http.StatusConflict, "reservation_not_pending"
	case errors.Is(err, availability.ErrReservationTerminal):
		return http.StatusConflict, "reservation_terminal"
	case errors.Is(err, billing.ErrInsufficientCredit):
		return http.StatusConflict, "insufficient_credit"
	case errors.Is(err, billing.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate_idempotency_key"
	case errors.Is(err, billing.ErrCustomerMismatch):
		return http.StatusConflict, "customer_mismatch"
	case errors.Is(err, billing.ErrInvoiceCancelled):
		return http.StatusConflict, "invoice_cancelled"
	case isValidationError(err):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusBadGateway, "storage_error"
	}
}

func isValidationError(err error) bool {
	validationErrors := []error{
		availability.ErrInvalidUnitID,
		availability.ErrInvalidReservationID,
		availability.ErrInvalidStayRange,
		availability.ErrInvalidGuestCount,
		availability.ErrInvalidDuration,
		availability.ErrInvalidReservationStatus,
		billing.ErrInvalidAmount,
		billing.ErrInvalidInvoiceID,
		billing.ErrInvalidCustomerID,
		billing.ErrInvalidPaymentID,
		billing.ErrInvalidIdempotencyKey,
		billing.ErrInvalidMetadataJSON,
		billing.ErrInvalidPaymentMethod,
	}
	for _, candidate := range validationErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

func parseStay(checkIn string, checkOut string) (availability.StayRange, error) {
	start, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return availability.StayRange{}, errors.New("check_in must be formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return availability.StayRange{}, errors.New("check_out must be formatted as YYYY-MM-DD")
	}
	return availability.NewStayRange(start, end)
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kutable/internal/modules/connect"
	"kutable/internal/pkg/response"
	"kutable/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create-payment-intent", h.CreatePaymentIntent)
	rg.POST("/create-checkout-session", h.CreateCheckoutSession)
}

// CreatePaymentIntent godoc
// @Summary  Start an in-app card payment for a booking
// @Tags     Payments
// @Accept   json
// @Produce  json
// @Param    body body CreatePaymentIntentRequest true "Booking and client details"
// @Router   /create-payment-intent [post]
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.Fields(err))
		return
	}

	res, err := h.service.CreatePaymentIntent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"clientSecret":    res.ClientSecret,
		"bookingId":       res.BookingID,
		"paymentIntentId": res.PaymentIntentID,
		"platformFee":     res.PlatformFee.StringFixed(2),
		"amount":          res.Amount.StringFixed(2),
	})
}

// CreateCheckoutSession godoc
// @Summary  Start a hosted Stripe Checkout for a booking
// @Tags     Payments
// @Accept   json
// @Produce  json
// @Param    body body CreateCheckoutSessionRequest true "Checkout parameters"
// @Router   /create-checkout-session [post]
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.Fields(err))
		return
	}

	res, err := h.service.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"sessionId": res.SessionID,
		"url":       res.URL,
		"bookingId": res.BookingID,
	})
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, verr.Fields)
	case errors.Is(err, ErrServiceNotFound):
		response.Error(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found for this barber")
	case errors.Is(err, connect.ErrAccountMissing):
		response.Error(c, http.StatusBadRequest, "STRIPE_ACCOUNT_MISSING", "This barber has not set up payments yet")
	case errors.Is(err, connect.ErrVerificationPending):
		response.Error(c, http.StatusBadRequest, "STRIPE_VERIFICATION_PENDING", "This barber's payment account is still being verified")
	case errors.Is(err, connect.ErrPaymentsDisabled):
		response.Error(c, http.StatusBadRequest, "STRIPE_PAYMENTS_DISABLED", "This barber cannot accept card payments right now")
	case errors.Is(err, ErrUpstream), errors.Is(err, connect.ErrUpstream):
		response.Error(c, http.StatusBadGateway, "STRIPE_ERROR", "Payment provider is unavailable, please try again")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
	}
}

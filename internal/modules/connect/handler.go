package connect

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kutable/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects rg to be behind JWT auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create-connect-account", h.CreateAccount)
	rg.POST("/check-account-status", h.CheckStatus)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	res, err := h.service.CreateAccount(c.Request.Context(), c.GetString("user_id"), req.BarberID, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toFields(res))
}

func (h *Handler) CheckStatus(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	res, err := h.service.CheckStatus(c.Request.Context(), c.GetString("user_id"), req.BarberID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toFields(res))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.ValidationError(c, nil)
	case errors.Is(err, ErrBarberNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Barber not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You don't own this barber profile")
	case errors.Is(err, ErrAccountMissing):
		response.Error(c, http.StatusNotFound, "STRIPE_ACCOUNT_MISSING", "No Stripe account has been created yet")
	case errors.Is(err, ErrUpstream):
		response.Error(c, http.StatusBadGateway, "STRIPE_ERROR", "Payment provider is unavailable, please try again")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
	}
}

func toFields(res *AccountResult) gin.H {
	out := gin.H{
		"accountId":           res.AccountID,
		"accountStatus":       res.AccountStatus,
		"chargesEnabled":      res.ChargesEnabled,
		"payoutsEnabled":      res.PayoutsEnabled,
		"detailsSubmitted":    res.DetailsSubmitted,
		"onboardingCompleted": res.OnboardingCompleted,
	}
	if res.OnboardingURL != "" {
		out["onboardingUrl"] = res.OnboardingURL
	}
	return out
}

package claim

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kutable/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects OptionalJWTAuth on the group so claim-complete can read the caller.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/claim-start", h.Start)
	rg.POST("/claim-peek", h.Peek)
	rg.POST("/claim-complete", h.Complete)
}

// Start godoc
// @Summary  Issue a claim link for a directory listing
// @Tags     Claim
// @Accept   json
// @Produce  json
// @Param    body body StartRequest true "Listing identity and contact"
// @Router   /claim-start [post]
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	res, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"claimUrl":  res.ClaimURL,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt.UTC().Format(time.RFC3339),
		"profileId": res.ProfileID,
		"slug":      res.Slug,
		"reused":    res.Reused,
	})
}

func (h *Handler) Peek(c *gin.Context) {
	var req PeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	prefill, err := h.service.Peek(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"profile": prefill})
}

// Complete godoc
// @Summary  Bind a claimed listing to a user
// @Tags     Claim
// @Accept   json
// @Produce  json
// @Param    body body CompleteRequest true "Token and user"
// @Router   /claim-complete [post]
func (h *Handler) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	// a verified bearer token decides who is claiming
	if caller := c.GetString("user_id"); caller != "" {
		if req.UserID != "" && req.UserID != caller {
			writeError(c, ErrForbidden)
			return
		}
		req.UserID = caller
	}

	res, err := h.service.Complete(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"slug":      res.Slug,
		"profileId": res.ProfileID,
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrTokenRequired):
		response.Error(c, http.StatusBadRequest, "TOKEN_REQUIRED", "Token is required.")
	case errors.Is(err, ErrTokenExpired):
		response.Error(c, http.StatusBadRequest, "TOKEN_EXPIRED", "Token expired.")
	case errors.Is(err, ErrTokenUsed):
		response.Error(c, http.StatusBadRequest, "TOKEN_USED", "Token already used.")
	case errors.Is(err, ErrTokenNotFound):
		response.Error(c, http.StatusNotFound, "TOKEN_NOT_FOUND", "Invalid claim token.")
	case errors.Is(err, ErrProfileNotFound):
		response.Error(c, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, ErrAlreadyClaimed):
		response.Error(c, http.StatusConflict, "ALREADY_CLAIMED", "Profile already claimed")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "userId does not match the signed-in user")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
	}
}

package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = int64(1 << 20)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe-webhook", h.StripeWebhook)
}

// StripeWebhook acknowledges every verified event with 200. Signature problems are 400
// and processing failures 500 so that Stripe redelivers.
func (h *Handler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"received": false, "error": "payload too large"})
		return
	}

	_, err = h.service.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": err.Error()})
	case errors.Is(err, ErrMalformedEvent):
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": "malformed event"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"received": false, "error": "processing failed"})
	}
}

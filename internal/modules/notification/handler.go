package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kutable/internal/domain"
	"kutable/internal/pkg/resendx"
	"kutable/internal/pkg/response"
)

const maxCallbackBytes = int64(256 << 10)

type HandlerConfig struct {
	// TwilioCallbackURL is the public URL Twilio signs status callbacks against.
	TwilioCallbackURL string
	TwilioValidator   TwilioSignatureValidator
	// EmailVerifier is nil when no Resend webhook secret is configured.
	EmailVerifier EmailWebhookVerifier
}

type Handler struct {
	service *Service
	cfg     HandlerConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewHandler(service *Service, cfg HandlerConfig, log zerolog.Logger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log, now: time.Now}
}

// RegisterInternalRoutes mounts the endpoints reserved for trusted callers.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/send-sms", h.SendSMS)
	rg.POST("/send-email", h.SendEmail)
	rg.POST("/notifications/retry", h.Retry)
}

// RegisterCallbackRoutes mounts provider callbacks, which carry their own signatures.
func (h *Handler) RegisterCallbackRoutes(rg *gin.RouterGroup) {
	rg.POST("/twilio-status", h.TwilioStatus)
	rg.POST("/resend-webhook", h.ResendWebhook)
}

type SendSMSRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required,max=1600"`
	Type    string `json:"type" binding:"omitempty,max=64"`
}

type SendEmailRequest struct {
	To      string `json:"to" binding:"required"`
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type" binding:"omitempty,max=64"`
}

// SendSMS godoc
// @Summary  Send an ad hoc SMS
// @Tags     Notifications
// @Accept   json
// @Produce  json
// @Param    body body SendSMSRequest true "Recipient and text"
// @Router   /send-sms [post]
func (h *Handler) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	n, err := h.service.Send(c.Request.Context(), SendInput{
		Channel:   domain.ChannelSMS,
		Recipient: req.To,
		Template:  TemplateCustom,
		Payload:   map[string]any{"message": req.Message, "subject": ""},
		Event:     eventName(req.Type),
	})
	h.writeSendResult(c, n, err)
}

// SendEmail godoc
// @Summary  Send an ad hoc HTML email
// @Tags     Notifications
// @Accept   json
// @Produce  json
// @Param    body body SendEmailRequest true "Recipient, subject and HTML body"
// @Router   /send-email [post]
func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, nil)
		return
	}

	n, err := h.service.Send(c.Request.Context(), SendInput{
		Channel:   domain.ChannelEmail,
		Recipient: req.To,
		Template:  TemplateCustom,
		Payload:   map[string]any{"message": req.Message, "subject": req.Subject},
		Event:     eventName(req.Type),
	})
	h.writeSendResult(c, n, err)
}

func (h *Handler) writeSendResult(c *gin.Context, n *domain.Notification, err error) {
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{
			"id":                n.ID,
			"status":            n.Status,
			"providerMessageId": n.ProviderMessageID,
		})
	case errors.Is(err, ErrInvalidRecipient):
		response.Error(c, http.StatusBadRequest, "INVALID_RECIPIENT", "Recipient is not a valid phone number or email address")
	case errors.Is(err, ErrDelivery):
		// the row exists and the sweep will retry it
		response.ErrorWithDetails(c, http.StatusBadGateway, "DELIVERY_FAILED", "Message could not be sent, it will be retried",
			gin.H{"id": n.ID, "status": n.Status})
	case errors.Is(err, ErrRender), errors.Is(err, ErrUnknownTemplate):
		response.ValidationError(c, map[string]string{"message": err.Error()})
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
	}
}

// Retry runs one retry sweep synchronously.
func (h *Handler) Retry(c *gin.Context) {
	res, err := h.service.RetryFailed(c.Request.Context(), h.now().UTC())
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", response.GenericMessage)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"scanned":   res.Scanned,
		"retried":   res.Retried,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	})
}

// TwilioStatus receives form-encoded delivery reports. Twilio only needs a 2xx.
func (h *Handler) TwilioStatus(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBytes)
	if err := c.Request.ParseForm(); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	params := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if h.cfg.TwilioValidator == nil || !h.cfg.TwilioValidator.Validate(h.cfg.TwilioCallbackURL, params, c.GetHeader("X-Twilio-Signature")) {
		h.log.Warn().Str("message_sid", params["MessageSid"]).Msg("twilio callback signature rejected")
		c.Status(http.StatusForbidden)
		return
	}

	if _, err := h.service.ApplyTwilioStatus(c.Request.Context(), params["MessageSid"], params["MessageStatus"], params["ErrorCode"]); err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResendWebhook receives svix-signed email events.
func (h *Handler) ResendWebhook(c *gin.Context) {
	if h.cfg.EmailVerifier == nil {
		response.Error(c, http.StatusServiceUnavailable, "WEBHOOK_NOT_CONFIGURED", "Email webhook is not configured")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"received": false})
		return
	}
	if err := h.cfg.EmailVerifier.Verify(payload, c.Request.Header); err != nil {
		h.log.Warn().Err(err).Msg("resend webhook signature rejected")
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": ErrInvalidSignature.Error()})
		return
	}

	var ev resendx.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": "malformed event"})
		return
	}
	if _, err := h.service.ApplyEmailEvent(c.Request.Context(), ev.Type, ev.Data.EmailID); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func eventName(t string) string {
	if t == "" {
		return domain.EventManual
	}
	return t
}

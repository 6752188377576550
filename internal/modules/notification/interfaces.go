package notification

import (
	"context"
	"net/http"
	"time"

	"kutable/internal/domain"
)

// SMSSender hands a text to the SMS provider and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// EmailSender hands an email to the email provider and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) (string, error)
}

type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	RecordAttempt(ctx context.Context, id string, status domain.NotificationStatus, providerMessageID, lastError string) error
	ListRetryCandidates(ctx context.Context, dueBefore []time.Time, maxAttempts, limit int) ([]domain.Notification, error)
	ClaimForRetry(ctx context.Context, n *domain.Notification) (bool, error)
	ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status domain.NotificationStatus, lastError string) (int64, error)
}

type TwilioSignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

type EmailWebhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

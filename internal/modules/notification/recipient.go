package notification

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"kutable/internal/domain"
	"kutable/internal/pkg/validator"
)

// NormalizeRecipient returns the canonical address for a channel: E.164 for SMS and a
// lowercased address for email.
func NormalizeRecipient(channel domain.NotificationChannel, raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidRecipient
	}
	switch channel {
	case domain.ChannelSMS:
		return NormalizePhone(raw, region)
	case domain.ChannelEmail:
		email := strings.ToLower(raw)
		if !validator.Email(email) {
			return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidRecipient, raw)
		}
		return email, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidChannel, channel)
	}
}

func NormalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = "US"
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q is not a dialable number", ErrInvalidRecipient, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

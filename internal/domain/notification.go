package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
)

type NotificationStatus string

const (
	NotificationQueued     NotificationStatus = "queued"
	NotificationSending    NotificationStatus = "sending"
	NotificationDelivered  NotificationStatus = "delivered"
	NotificationBounced    NotificationStatus = "bounced"
	NotificationComplained NotificationStatus = "complained"
	NotificationFailed     NotificationStatus = "failed"
)

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventClaimInvite      = "claim_invite"
	EventManual           = "manual"
)

// Notification is one delivery attempt record per recipient and channel.
type Notification struct {
	ID                string              `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID         *string             `json:"booking_id,omitempty" gorm:"type:uuid;index"`
	Event             string              `json:"event" gorm:"type:varchar(64);not null"`
	Channel           NotificationChannel `json:"channel" gorm:"type:varchar(8);not null"`
	Recipient         string              `json:"recipient" gorm:"not null"`
	Template          string              `json:"template" gorm:"type:varchar(64);not null"`
	Payload           datatypes.JSON      `json:"payload" gorm:"type:jsonb"`
	Status            NotificationStatus  `json:"status" gorm:"type:varchar(16);not null;index:idx_notifications_retry,priority:1"`
	Attempts          int                 `json:"attempts" gorm:"not null;default:0"`
	ProviderMessageID string              `json:"provider_message_id,omitempty" gorm:"index"`
	LastError         string              `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" gorm:"index:idx_notifications_retry,priority:2"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

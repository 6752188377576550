package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimToken struct {
	ID         string     `json:"id" gorm:"type:uuid;primaryKey"`
	BarberID   string     `json:"barber_id" gorm:"type:uuid;not null;index"`
	Token      string     `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy *string    `json:"consumed_by,omitempty" gorm:"type:uuid"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t *ClaimToken) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *ClaimToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *ClaimToken) Consumed() bool {
	return t.ConsumedAt != nil
}

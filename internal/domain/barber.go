package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BarberProfile is a directory listing. Imported listings start unclaimed with no user.
type BarberProfile struct {
	ID                  string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID              *string   `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Slug                string    `json:"slug" gorm:"uniqueIndex;not null"`
	BusinessName        string    `json:"business_name" gorm:"not null"`
	OwnerName           string    `json:"owner_name,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Email               string    `json:"email,omitempty"`
	City                string    `json:"city,omitempty"`
	IsClaimed           bool      `json:"is_claimed" gorm:"not null;default:false"`
	OnboardingCompleted bool      `json:"onboarding_completed" gorm:"not null;default:false"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (p *BarberProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// BarberService is a bookable service offered by a barber.
type BarberService struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey"`
	BarberID        string          `json:"barber_id" gorm:"type:uuid;not null;index"`
	Name            string          `json:"name" gorm:"not null"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	DurationMinutes int             `json:"duration_minutes" gorm:"not null;default:30"`
	IsActive        bool            `json:"is_active" gorm:"not null;default:true"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (BarberService) TableName() string {
	return "services"
}

func (s *BarberService) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleClient UserRole = "client"
	RoleBarber UserRole = "barber"
	RoleAdmin  UserRole = "admin"
)

// User mirrors the auth user record; email is stored lowercase and indexed.
type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	FullName  string    `json:"full_name"`
	Role      UserRole  `json:"role" gorm:"type:varchar(16);not null;default:client"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

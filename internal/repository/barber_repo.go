package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"kutable/internal/domain"
)

type BarberRepository struct {
	db *gorm.DB
}

func NewBarberRepository(db *gorm.DB) *BarberRepository {
	return &BarberRepository{db: db}
}

func (r *BarberRepository) GetByID(ctx context.Context, id string) (*domain.BarberProfile, error) {
	var p domain.BarberProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetBySlug matches case-insensitively.
func (r *BarberRepository) GetBySlug(ctx context.Context, slug string) (*domain.BarberProfile, error) {
	var p domain.BarberProfile
	if err := r.db.WithContext(ctx).Where("LOWER(slug) = ?", strings.ToLower(slug)).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *BarberRepository) Create(ctx context.Context, p *domain.BarberProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Claim binds the profile to userID in one conditional update. It succeeds when the profile
// is unclaimed or already bound to the same user, and reports false on a lost race.
func (r *BarberRepository) Claim(ctx context.Context, profileID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.BarberProfile{}).
		Where("id = ? AND (is_claimed = ? OR user_id = ?)", profileID, false, userID).
		Updates(map[string]interface{}{"is_claimed": true, "user_id": userID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BarberRepository) SetOnboardingCompleted(ctx context.Context, profileID string, completed bool) error {
	return r.db.WithContext(ctx).Model(&domain.BarberProfile{}).
		Where("id = ?", profileID).
		Update("onboarding_completed", completed).Error
}

func (r *BarberRepository) GetService(ctx context.Context, barberID, serviceID string) (*domain.BarberService, error) {
	var s domain.BarberService
	err := r.db.WithContext(ctx).
		Where("id = ? AND barber_id = ? AND is_active = ?", serviceID, barberID, true).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kutable/internal/domain"
)

type ClaimTokenRepository struct {
	db *gorm.DB
}

func NewClaimTokenRepository(db *gorm.DB) *ClaimTokenRepository {
	return &ClaimTokenRepository{db: db}
}

func (r *ClaimTokenRepository) Create(ctx context.Context, t *domain.ClaimToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ClaimTokenRepository) GetByToken(ctx context.Context, token string) (*domain.ClaimToken, error) {
	var t domain.ClaimToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindLive returns the newest unexpired, unconsumed token for the barber.
func (r *ClaimTokenRepository) FindLive(ctx context.Context, barberID string, now time.Time) (*domain.ClaimToken, error) {
	var t domain.ClaimToken
	err := r.db.WithContext(ctx).
		Where("barber_id = ? AND consumed_at IS NULL AND expires_at > ?", barberID, now).
		Order("expires_at DESC").
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Consume marks the token used. False means another caller consumed it first.
func (r *ClaimTokenRepository) Consume(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.ClaimToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Updates(map[string]interface{}{"consumed_at": now, "consumed_by": userID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

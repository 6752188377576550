package repository

import (
	"context"

	"gorm.io/gorm"

	"kutable/internal/domain"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes a ledger row once per Stripe transaction id. A replay returns false, nil.
func (r *LedgerRepository) Append(ctx context.Context, t *domain.PlatformTransaction) (bool, error) {
	err := r.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return true, nil
	}
	if IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (r *LedgerRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.PlatformTransaction, error) {
	var out []domain.PlatformTransaction
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&out).Error
	return out, err
}

package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kutable/internal/domain"
)

type StripeAccountRepository struct {
	db *gorm.DB
}

func NewStripeAccountRepository(db *gorm.DB) *StripeAccountRepository {
	return &StripeAccountRepository{db: db}
}

func (r *StripeAccountRepository) GetByBarberID(ctx context.Context, barberID string) (*domain.StripeAccount, error) {
	var a domain.StripeAccount
	if err := r.db.WithContext(ctx).Where("barber_id = ?", barberID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *StripeAccountRepository) GetByStripeID(ctx context.Context, stripeAccountID string) (*domain.StripeAccount, error) {
	var a domain.StripeAccount
	if err := r.db.WithContext(ctx).Where("stripe_account_id = ?", stripeAccountID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Upsert inserts or refreshes the row keyed by stripe_account_id.
func (r *StripeAccountRepository) Upsert(ctx context.Context, a *domain.StripeAccount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stripe_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_status", "charges_enabled", "payouts_enabled", "details_submitted", "updated_at",
		}),
	}).Create(a).Error
}

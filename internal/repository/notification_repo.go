package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kutable/internal/domain"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

// RecordAttempt stores the outcome of one provider call and bumps attempts.
func (r *NotificationRepository) RecordAttempt(ctx context.Context, id string, status domain.NotificationStatus, providerMessageID, lastError string) error {
	updates := map[string]interface{}{
		"status":     status,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastError,
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}
	return r.db.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", id).Updates(updates).Error
}

// ListRetryCandidates returns the oldest rows that are due for another attempt.
// dueBefore[i] is the updated_at cutoff for rows with i+1 attempts; index 0 also covers
// rows never attempted and the last cutoff covers every higher attempt count.
func (r *NotificationRepository) ListRetryCandidates(ctx context.Context, dueBefore []time.Time, maxAttempts, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	if len(dueBefore) == 0 {
		return out, nil
	}

	var due *gorm.DB
	last := len(dueBefore) - 1
	for i, cutoff := range dueBefore {
		query, args := "attempts = ? AND updated_at < ?", []interface{}{i + 1, cutoff}
		switch {
		case last == 0:
			query, args = "updated_at < ?", []interface{}{cutoff}
		case i == 0:
			query, args = "attempts <= 1 AND updated_at < ?", []interface{}{cutoff}
		case i == last:
			query = "attempts >= ? AND updated_at < ?"
		}
		if due == nil {
			due = r.db.Where(query, args...)
		} else {
			due = due.Or(query, args...)
		}
	}

	err := r.db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Where(due).
		Where(
			r.db.Where("status = ?", domain.NotificationFailed).
				Or("status = ? AND (provider_message_id IS NULL OR provider_message_id = '')", domain.NotificationQueued),
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ClaimForRetry moves a row into sending only if nobody else touched it since it was read.
func (r *NotificationRepository) ClaimForRetry(ctx context.Context, n *domain.Notification) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND status = ? AND attempts = ?", n.ID, n.Status, n.Attempts).
		Update("status", domain.NotificationSending)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyDeliveryStatus records a provider callback. Bounce and complaint are final and never
// overwritten by a later delivery report.
func (r *NotificationRepository) ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status domain.NotificationStatus, lastError string) (int64, error) {
	updates := map[string]interface{}{"status": status}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("provider_message_id = ?", providerMessageID).
		Where("status NOT IN ?", []domain.NotificationStatus{domain.NotificationBounced, domain.NotificationComplained}).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&out).Error
	return out, err
}

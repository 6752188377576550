package repository

import (
	"context"

	"gorm.io/gorm"

	"kutable/internal/domain"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BookingRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", paymentIntentID).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BookingRepository) GetByChargeID(ctx context.Context, chargeID string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).Where("stripe_charge_id = ?", chargeID).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// Delete removes a booking that never got a payment object. Only pending rows qualify.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, domain.BookingPending).
		Delete(&domain.Booking{}).Error
}

func (r *BookingRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	return r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ?", id).
		Update("stripe_checkout_session_id", sessionID).Error
}

// Confirm moves a pending booking to confirmed. A cancelled booking is revived only when the
// cancelled payment is the one that now succeeded (same payment intent or checkout session).
// It reports whether this call made the transition; replays and late events on confirmed,
// refund_requested or completed rows change nothing.
func (r *BookingRepository) Confirm(ctx context.Context, id string, refs domain.PaymentRefs) (bool, error) {
	updates := map[string]interface{}{"status": domain.BookingConfirmed}
	setRefs(updates, refs)

	eligible := r.db.Where("status = ?", domain.BookingPending)
	if refs.PaymentIntentID != "" {
		eligible = eligible.Or("status = ? AND stripe_payment_intent_id = ?", domain.BookingCancelled, refs.PaymentIntentID)
	}
	if refs.CheckoutSessionID != "" {
		eligible = eligible.Or("status = ? AND stripe_checkout_session_id = ?", domain.BookingCancelled, refs.CheckoutSessionID)
	}

	res := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ?", id).
		Where(eligible).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// no transition; still record references Stripe sent late (e.g. the charge id)
	if err := r.attachMissingRefs(ctx, id, refs); err != nil {
		return false, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// CancelPending cancels a booking whose payment failed. Confirmed bookings are left alone.
// The failed payment's references are recorded so a later success on the same intent can
// still confirm the booking.
func (r *BookingRepository) CancelPending(ctx context.Context, id string, refs domain.PaymentRefs) (bool, error) {
	updates := map[string]interface{}{"status": domain.BookingCancelled}
	setRefs(updates, refs)

	res := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ? AND status = ?", id, domain.BookingPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkRefundRequested flags the booking paid by chargeID (or paymentIntentID when the charge
// was never recorded) as disputed.
func (r *BookingRepository) MarkRefundRequested(ctx context.Context, chargeID, paymentIntentID string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Booking{})
	switch {
	case chargeID != "" && paymentIntentID != "":
		q = q.Where("stripe_charge_id = ? OR stripe_payment_intent_id = ?", chargeID, paymentIntentID)
	case chargeID != "":
		q = q.Where("stripe_charge_id = ?", chargeID)
	case paymentIntentID != "":
		q = q.Where("stripe_payment_intent_id = ?", paymentIntentID)
	default:
		return 0, nil
	}
	res := q.Where("status <> ?", domain.BookingRefundRequested).Update("status", domain.BookingRefundRequested)
	return res.RowsAffected, res.Error
}

func (r *BookingRepository) attachMissingRefs(ctx context.Context, id string, refs domain.PaymentRefs) error {
	cols := map[string]string{
		"stripe_payment_intent_id":   refs.PaymentIntentID,
		"stripe_checkout_session_id": refs.CheckoutSessionID,
		"stripe_charge_id":           refs.ChargeID,
	}
	for col, val := range cols {
		if val == "" {
			continue
		}
		err := r.db.WithContext(ctx).Model(&domain.Booking{}).
			Where("id = ? AND ("+col+" IS NULL OR "+col+" = '')", id).
			Update(col, val).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func setRefs(updates map[string]interface{}, refs domain.PaymentRefs) {
	if refs.PaymentIntentID != "" {
		updates["stripe_payment_intent_id"] = refs.PaymentIntentID
	}
	if refs.CheckoutSessionID != "" {
		updates["stripe_checkout_session_id"] = refs.CheckoutSessionID
	}
	if refs.ChargeID != "" {
		updates["stripe_charge_id"] = refs.ChargeID
	}
}

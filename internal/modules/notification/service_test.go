package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kutable/internal/domain"
	"kutable/internal/repository"
	"kutable/internal/testutil"
)

type sent struct {
	to, subject, body string
}

// fakeProvider plays both the SMS and the email provider.
type fakeProvider struct {
	mu    sync.Mutex
	sms   []sent
	email []sent
	fail  error
	seq   int
}

func (p *fakeProvider) SendSMS(_ context.Context, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sms = append(p.sms, sent{to: to, body: body})
	if p.fail != nil {
		return "", p.fail
	}
	p.seq++
	return fmt.Sprintf("SM%03d", p.seq), nil
}

func (p *fakeProvider) SendEmail(_ context.Context, to, subject, html string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.email = append(p.email, sent{to: to, subject: subject, body: html})
	if p.fail != nil {
		return "", p.fail
	}
	p.seq++
	return fmt.Sprintf("em_%03d", p.seq), nil
}

func (p *fakeProvider) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func newTestService(t *testing.T) (*Service, *fakeProvider, *repository.NotificationRepository, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewNotificationRepository(db)
	p := &fakeProvider{}
	svc := NewService(repo, p, p, Config{DefaultRegion: "US", MaxAttempts: 3, RetryBatch: 25}, zerolog.Nop())
	return svc, p, repo, db
}

func TestSend_NormalizesAndQueues(t *testing.T) {
	svc, p, repo, _ := newTestService(t)
	ctx := context.Background()

	n, err := svc.Send(ctx, SendInput{
		Channel:   domain.ChannelSMS,
		Recipient: "(415) 555-2671",
		Template:  TemplateCustom,
		Payload:   map[string]any{"message": "Running 5 min late", "subject": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "+14155552671", n.Recipient)
	assert.Equal(t, domain.NotificationQueued, n.Status)
	assert.Equal(t, domain.EventManual, n.Event)

	stored, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationQueued, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "SM001", stored.ProviderMessageID)

	require.Len(t, p.sms, 1)
	assert.Equal(t, "Running 5 min late", p.sms[0].body)
}

func TestSend_InvalidRecipientWritesNoRow(t *testing.T) {
	svc, p, _, db := newTestService(t)

	_, err := svc.Send(context.Background(), SendInput{Channel: domain.ChannelSMS, Recipient: "12", Template: TemplateCustom, Payload: map[string]any{"message": "x", "subject": ""}})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = svc.Send(context.Background(), SendInput{Channel: domain.ChannelEmail, Recipient: "not-an-email", Template: TemplateCustom, Payload: map[string]any{"message": "x", "subject": "y"}})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	var count int64
	require.NoError(t, db.Model(&domain.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, p.sms)
	assert.Empty(t, p.email)
}

func TestSend_ProviderFailureIsRecorded(t *testing.T) {
	svc, p, repo, _ := newTestService(t)
	p.setFail(errors.New("21610: unsubscribed recipient"))

	n, err := svc.Send(context.Background(), SendInput{Channel: domain.ChannelEmail, Recipient: "Client@Example.com", Template: TemplateCustom, Payload: map[string]any{"message": "<p>hi</p>", "subject": "Hello"}})
	require.ErrorIs(t, err, ErrDelivery)
	require.NotNil(t, n)

	stored, err := repo.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "client@example.com", stored.Recipient)
	assert.Contains(t, stored.LastError, "unsubscribed")
}

func TestNotifyBookingConfirmed_BothChannels(t *testing.T) {
	svc, p, repo, _ := newTestService(t)
	b := &domain.Booking{
		ID:              "aaaaaaaa-0000-0000-0000-000000000001",
		AppointmentDate: "2026-11-02",
		AppointmentTime: "14:30",
		TotalAmount:     decimal.RequireFromString("100.00"),
		ClientName:      "Jordan Lee",
		ClientPhone:     "+14155552671",
		ClientEmail:     "jordan@example.com",
	}

	require.NoError(t, svc.NotifyBookingConfirmed(context.Background(), b))
	require.Len(t, p.sms, 1)
	require.Len(t, p.email, 1)
	assert.Contains(t, p.sms[0].body, "2026-11-02 at 14:30 is confirmed")
	assert.Contains(t, p.sms[0].body, "$100.00")
	assert.Equal(t, "Your booking on 2026-11-02 is confirmed", p.email[0].subject)
	assert.Contains(t, p.email[0].body, "<strong>14:30</strong>")

	rows, err := repo.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, domain.EventBookingConfirmed, r.Event)
		assert.Equal(t, TemplateBookingConfirmed, r.Template)
	}
}

func TestNotifyBookingConfirmed_OneChannelFailing(t *testing.T) {
	svc, p, repo, _ := newTestService(t)
	b := &domain.Booking{
		ID:              "aaaaaaaa-0000-0000-0000-000000000002",
		AppointmentDate: "2026-11-02",
		AppointmentTime: "09:00",
		TotalAmount:     decimal.RequireFromString("40.00"),
		ClientPhone:     "not a phone",
		ClientEmail:     "jordan@example.com",
	}

	err := svc.NotifyBookingConfirmed(context.Background(), b)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Len(t, p.email, 1, "email still goes out when the phone is unusable")

	rows, err := repo.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ChannelEmail, rows[0].Channel)
}

func TestSendClaimInvite_EscapesHTML(t *testing.T) {
	svc, p, _, _ := newTestService(t)

	err := svc.SendClaimInvite(context.Background(), ClaimInvite{
		BusinessName: "Fade & <Co>",
		Email:        "owner@example.com",
		ClaimURL:     "https://kutable.com/claim?token=abc",
		ExpiresAt:    time.Date(2026, 11, 3, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, p.email, 1)
	assert.Contains(t, p.email[0].body, "Fade &amp; &lt;Co&gt;")
	assert.Contains(t, p.email[0].body, `href="https://kutable.com/claim?token=abc"`)
	assert.Equal(t, "Claim Fade & <Co> on Kutable", p.email[0].subject)
}

func ageRow(t *testing.T, db *gorm.DB, id string, age time.Duration, now time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&domain.Notification{}).Where("id = ?", id).UpdateColumn("updated_at", now.Add(-age)).Error)
}

func TestRetryFailed_ResendsDueRows(t *testing.T) {
	svc, p, repo, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p.setFail(errors.New("provider down"))
	due, _ := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552671", Template: TemplateCustom, Payload: map[string]any{"message": "due", "subject": ""}})
	fresh, _ := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552672", Template: TemplateCustom, Payload: map[string]any{"message": "fresh", "subject": ""}})
	p.setFail(nil)

	ageRow(t, db, due.ID, 61*time.Second, now)
	ageRow(t, db, fresh.ID, 30*time.Second, now)

	res, err := svc.RetryFailed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, RetryResult{Scanned: 1, Retried: 1, Succeeded: 1}, res)

	got, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationQueued, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.NotEmpty(t, got.ProviderMessageID)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestRetryFailed_BackedOffRowsDoNotStarveDueRow(t *testing.T) {
	svc, p, repo, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p.setFail(errors.New("provider down"))
	for i := 0; i < 25; i++ {
		n, _ := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552671", Template: TemplateCustom, Payload: map[string]any{"message": "waiting", "subject": ""}})
		require.NoError(t, db.Model(&domain.Notification{}).Where("id = ?", n.ID).UpdateColumn("attempts", 2).Error)
		ageRow(t, db, n.ID, 200*time.Second, now)
	}
	due, _ := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552672", Template: TemplateCustom, Payload: map[string]any{"message": "due", "subject": ""}})
	ageRow(t, db, due.ID, 90*time.Second, now)
	p.setFail(nil)

	res, err := svc.RetryFailed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, RetryResult{Scanned: 1, Retried: 1, Succeeded: 1}, res)

	got, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationQueued, got.Status)
}

func TestRetryCutoffs(t *testing.T) {
	now := time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC)
	got := retryCutoffs(now)
	require.Len(t, got, 3)
	assert.Equal(t, now.Add(-time.Minute), got[0])
	assert.Equal(t, now.Add(-5*time.Minute), got[1])
	assert.Equal(t, now.Add(-15*time.Minute), got[2])
}

func TestRetryFailed_StopsAtMaxAttempts(t *testing.T) {
	svc, p, repo, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p.setFail(errors.New("provider down"))
	n, _ := svc.Send(ctx, SendInput{Channel: domain.ChannelEmail, Recipient: "a@example.com", Template: TemplateCustom, Payload: map[string]any{"message": "m", "subject": "s"}})

	for i := 0; i < 5; i++ {
		ageRow(t, db, n.ID, time.Hour, now)
		_, err := svc.RetryFailed(ctx, now)
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, domain.NotificationFailed, got.Status)
	assert.Len(t, p.email, 3)
}

func TestRetryFailed_SkipsInFlightQueued(t *testing.T) {
	svc, p, _, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	n, err := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552671", Template: TemplateCustom, Payload: map[string]any{"message": "ok", "subject": ""}})
	require.NoError(t, err)
	ageRow(t, db, n.ID, time.Hour, now)

	res, err := svc.RetryFailed(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, res.Retried)
	assert.Len(t, p.sms, 1)
}

func TestApplyDeliveryCallbacks(t *testing.T) {
	svc, _, repo, _ := newTestService(t)
	ctx := context.Background()

	sms, err := svc.Send(ctx, SendInput{Channel: domain.ChannelSMS, Recipient: "+14155552671", Template: TemplateCustom, Payload: map[string]any{"message": "hi", "subject": ""}})
	require.NoError(t, err)
	email, err := svc.Send(ctx, SendInput{Channel: domain.ChannelEmail, Recipient: "a@example.com", Template: TemplateCustom, Payload: map[string]any{"message": "hi", "subject": "s"}})
	require.NoError(t, err)

	changed, err := svc.ApplyTwilioStatus(ctx, sms.ProviderMessageID, "sent", "")
	require.NoError(t, err)
	assert.False(t, changed, "intermediate statuses are ignored")

	changed, err = svc.ApplyTwilioStatus(ctx, sms.ProviderMessageID, "delivered", "")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.ApplyEmailEvent(ctx, "email.bounced", email.ProviderMessageID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.ApplyEmailEvent(ctx, "email.delivered", email.ProviderMessageID)
	require.NoError(t, err)
	assert.False(t, changed, "a bounce is final")

	got, err := repo.GetByID(ctx, sms.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationDelivered, got.Status)
	got, err = repo.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationBounced, got.Status)
}

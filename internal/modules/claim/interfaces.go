package claim

import (
	"context"
	"time"

	"kutable/internal/domain"
	"kutable/internal/modules/notification"
)

type BarberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.BarberProfile, error)
	GetBySlug(ctx context.Context, slug string) (*domain.BarberProfile, error)
	Create(ctx context.Context, p *domain.BarberProfile) error
	Claim(ctx context.Context, profileID, userID string) (bool, error)
}

type TokenRepository interface {
	Create(ctx context.Context, t *domain.ClaimToken) error
	GetByToken(ctx context.Context, token string) (*domain.ClaimToken, error)
	FindLive(ctx context.Context, barberID string, now time.Time) (*domain.ClaimToken, error)
	Consume(ctx context.Context, id, userID string, now time.Time) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type InviteSender interface {
	SendClaimInvite(ctx context.Context, in notification.ClaimInvite) error
}

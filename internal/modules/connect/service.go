package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
	"kutable/internal/pkg/stripex"
	"kutable/internal/repository"
)

type Service struct {
	gateway  Gateway
	accounts AccountRepository
	barbers  BarberRepository
	log      zerolog.Logger
}

func NewService(gateway Gateway, accounts AccountRepository, barbers BarberRepository, log zerolog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		accounts: accounts,
		barbers:  barbers,
		log:      log.With().Str("component", "connect").Logger(),
	}
}

// CreateAccount returns the barber's Connect account, creating an express account on first
// call, together with a fresh onboarding link.
func (s *Service) CreateAccount(ctx context.Context, callerID, barberID, email string) (*AccountResult, error) {
	profile, err := s.ownedProfile(ctx, callerID, barberID)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = profile.Email
	}

	row, err := s.accounts.GetByBarberID(ctx, barberID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		acct, cerr := s.gateway.CreateExpressAccount(ctx, email, barberID)
		if cerr != nil {
			s.log.Error().Str("barber_id", barberID).Str("stripe_error", stripex.Describe(cerr)).Msg("create express account failed")
			return nil, ErrUpstream
		}
		row = &domain.StripeAccount{
			BarberID:        barberID,
			StripeAccountID: acct.ID,
			AccountStatus:   domain.StripeAccountPending,
		}
		applyAccount(row, acct)
		if err := s.accounts.Upsert(ctx, row); err != nil {
			return nil, fmt.Errorf("save stripe account: %w", err)
		}
		s.log.Info().Str("barber_id", barberID).Str("account_id", acct.ID).Msg("express account created")
	default:
		return nil, err
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, row.StripeAccountID)
	if err != nil {
		s.log.Error().Str("account_id", row.StripeAccountID).Str("stripe_error", stripex.Describe(err)).Msg("create onboarding link failed")
		return nil, ErrUpstream
	}

	res := toResult(row)
	res.OnboardingURL = url
	return res, nil
}

// CheckStatus refreshes the stored account from Stripe.
func (s *Service) CheckStatus(ctx context.Context, callerID, barberID string) (*AccountResult, error) {
	if _, err := s.ownedProfile(ctx, callerID, barberID); err != nil {
		return nil, err
	}
	row, err := s.accounts.GetByBarberID(ctx, barberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountMissing
	}
	if err != nil {
		return nil, err
	}

	acct, err := s.gateway.GetAccount(ctx, row.StripeAccountID)
	if err != nil {
		s.log.Error().Str("account_id", row.StripeAccountID).Str("stripe_error", stripex.Describe(err)).Msg("fetch account failed")
		return nil, ErrUpstream
	}
	if err := s.store(ctx, row, acct); err != nil {
		return nil, err
	}
	return toResult(row), nil
}

// SyncAccount applies an account.updated payload. Accounts we never created are ignored.
func (s *Service) SyncAccount(ctx context.Context, acct *stripe.Account) error {
	row, err := s.accounts.GetByStripeID(ctx, acct.ID)
	if errors.Is(err, repository.ErrNotFound) {
		barberID := acct.Metadata["barber_id"]
		if barberID == "" {
			s.log.Warn().Str("account_id", acct.ID).Msg("account.updated for unknown account")
			return nil
		}
		row = &domain.StripeAccount{BarberID: barberID, StripeAccountID: acct.ID}
	} else if err != nil {
		return err
	}
	return s.store(ctx, row, acct)
}

// VerifyPayable checks live capabilities and returns the destination account id.
func (s *Service) VerifyPayable(ctx context.Context, barberID string) (string, error) {
	row, err := s.accounts.GetByBarberID(ctx, barberID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrAccountMissing
	}
	if err != nil {
		return "", err
	}

	acct, err := s.gateway.GetAccount(ctx, row.StripeAccountID)
	if err != nil {
		s.log.Error().Str("account_id", row.StripeAccountID).Str("stripe_error", stripex.Describe(err)).Msg("fetch account failed")
		return "", ErrUpstream
	}
	if err := s.store(ctx, row, acct); err != nil {
		s.log.Warn().Err(err).Str("account_id", acct.ID).Msg("refresh stored account failed")
	}

	caps := acct.Capabilities
	if caps == nil || caps.Transfers != stripe.AccountCapabilityStatusActive {
		return "", ErrVerificationPending
	}
	if caps.CardPayments != stripe.AccountCapabilityStatusActive {
		return "", ErrPaymentsDisabled
	}
	return acct.ID, nil
}

func (s *Service) store(ctx context.Context, row *domain.StripeAccount, acct *stripe.Account) error {
	applyAccount(row, acct)
	if err := s.accounts.Upsert(ctx, row); err != nil {
		return fmt.Errorf("save stripe account: %w", err)
	}
	if err := s.barbers.SetOnboardingCompleted(ctx, row.BarberID, row.OnboardingComplete()); err != nil {
		return fmt.Errorf("update onboarding flag: %w", err)
	}
	return nil
}

func (s *Service) ownedProfile(ctx context.Context, callerID, barberID string) (*domain.BarberProfile, error) {
	if barberID == "" {
		return nil, ErrValidation
	}
	profile, err := s.barbers.GetByID(ctx, barberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBarberNotFound
	}
	if err != nil {
		return nil, err
	}
	if profile.UserID == nil || *profile.UserID != callerID {
		return nil, ErrForbidden
	}
	return profile, nil
}

// DeriveStatus maps Stripe capabilities onto our three account states.
func DeriveStatus(acct *stripe.Account) domain.StripeAccountStatus {
	if acct.Capabilities != nil &&
		acct.Capabilities.CardPayments == stripe.AccountCapabilityStatusActive &&
		acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive {
		return domain.StripeAccountActive
	}
	if acct.DetailsSubmitted {
		return domain.StripeAccountPendingVerification
	}
	return domain.StripeAccountPending
}

func applyAccount(row *domain.StripeAccount, acct *stripe.Account) {
	row.AccountStatus = DeriveStatus(acct)
	row.ChargesEnabled = acct.ChargesEnabled
	row.PayoutsEnabled = acct.PayoutsEnabled
	row.DetailsSubmitted = acct.DetailsSubmitted
}

func toResult(row *domain.StripeAccount) *AccountResult {
	return &AccountResult{
		AccountID:           row.StripeAccountID,
		AccountStatus:       string(row.AccountStatus),
		ChargesEnabled:      row.ChargesEnabled,
		PayoutsEnabled:      row.PayoutsEnabled,
		DetailsSubmitted:    row.DetailsSubmitted,
		OnboardingCompleted: row.OnboardingComplete(),
	}
}

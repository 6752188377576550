package connect

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"kutable/internal/domain"
	"kutable/internal/repository"
	"kutable/internal/testutil"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateExpressAccount(ctx context.Context, email, barberID string) (*stripe.Account, error) {
	args := m.Called(ctx, email, barberID)
	acct, _ := args.Get(0).(*stripe.Account)
	return acct, args.Error(1)
}

func (m *mockGateway) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	args := m.Called(ctx, accountID)
	acct, _ := args.Get(0).(*stripe.Account)
	return acct, args.Error(1)
}

func (m *mockGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc      *Service
	gateway  *mockGateway
	accounts *repository.StripeAccountRepository
	barbers  *repository.BarberRepository
	profile  *domain.BarberProfile
}

const ownerID = "aaaaaaaa-0000-0000-0000-000000000001"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		gateway:  &mockGateway{},
		accounts: repository.NewStripeAccountRepository(db),
		barbers:  repository.NewBarberRepository(db),
	}
	owner := ownerID
	f.profile = &domain.BarberProfile{Slug: "clean-cuts", BusinessName: "Clean Cuts", Email: "cuts@example.com", UserID: &owner, IsClaimed: true}
	require.NoError(t, f.barbers.Create(context.Background(), f.profile))
	f.svc = NewService(f.gateway, f.accounts, f.barbers, zerolog.Nop())
	return f
}

func activeAccount(id string) *stripe.Account {
	return &stripe.Account{
		ID:               id,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
		Capabilities: &stripe.AccountCapabilities{
			CardPayments: stripe.AccountCapabilityStatusActive,
			Transfers:    stripe.AccountCapabilityStatusActive,
		},
	}
}

func TestCreateAccount_FirstCallCreatesExpressAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.On("CreateExpressAccount", mock.Anything, "cuts@example.com", f.profile.ID).
		Return(&stripe.Account{ID: "acct_new"}, nil).Once()
	f.gateway.On("CreateOnboardingLink", mock.Anything, "acct_new").
		Return("https://connect.stripe.com/setup/e/acct_new", nil).Twice()

	res, err := f.svc.CreateAccount(ctx, ownerID, f.profile.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_new", res.AccountID)
	assert.Equal(t, "pending", res.AccountStatus)
	assert.NotEmpty(t, res.OnboardingURL)

	// second call reuses the stored account
	res, err = f.svc.CreateAccount(ctx, ownerID, f.profile.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_new", res.AccountID)
	f.gateway.AssertExpectations(t)
}

func TestCreateAccount_RejectsNonOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAccount(context.Background(), "someone-else", f.profile.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	f.gateway.AssertNotCalled(t, "CreateExpressAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAccount_StripeFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("CreateExpressAccount", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "boom"})

	_, err := f.svc.CreateAccount(context.Background(), ownerID, f.profile.ID, "")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestVerifyPayable_CapabilityGating(t *testing.T) {
	cases := []struct {
		name     string
		card     stripe.AccountCapabilityStatus
		transfer stripe.AccountCapabilityStatus
		wantErr  error
	}{
		{name: "active", card: stripe.AccountCapabilityStatusActive, transfer: stripe.AccountCapabilityStatusActive},
		{name: "transfers pending", card: stripe.AccountCapabilityStatusActive, transfer: stripe.AccountCapabilityStatusPending, wantErr: ErrVerificationPending},
		{name: "card inactive", card: stripe.AccountCapabilityStatusInactive, transfer: stripe.AccountCapabilityStatusActive, wantErr: ErrPaymentsDisabled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.accounts.Upsert(ctx, &domain.StripeAccount{
				BarberID: f.profile.ID, StripeAccountID: "acct_1", AccountStatus: domain.StripeAccountPending,
			}))
			acct := activeAccount("acct_1")
			acct.Capabilities.CardPayments = tc.card
			acct.Capabilities.Transfers = tc.transfer
			f.gateway.On("GetAccount", mock.Anything, "acct_1").Return(acct, nil)

			dest, err := f.svc.VerifyPayable(ctx, f.profile.ID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acct_1", dest)
		})
	}
}

func TestVerifyPayable_NoAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyPayable(context.Background(), f.profile.ID)
	assert.ErrorIs(t, err, ErrAccountMissing)
}

func TestSyncAccount_RecomputesOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.accounts.Upsert(ctx, &domain.StripeAccount{
		BarberID: f.profile.ID, StripeAccountID: "acct_2", AccountStatus: domain.StripeAccountPending,
	}))

	require.NoError(t, f.svc.SyncAccount(ctx, activeAccount("acct_2")))

	row, err := f.accounts.GetByBarberID(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StripeAccountActive, row.AccountStatus)
	profile, err := f.barbers.GetByID(ctx, f.profile.ID)
	require.NoError(t, err)
	assert.True(t, profile.OnboardingCompleted)

	partial := activeAccount("acct_2")
	partial.PayoutsEnabled = false
	require.NoError(t, f.svc.SyncAccount(ctx, partial))
	profile, _ = f.barbers.GetByID(ctx, f.profile.ID)
	assert.False(t, profile.OnboardingCompleted)
}

func TestSyncAccount_UnknownAccountIgnored(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SyncAccount(context.Background(), activeAccount("acct_stranger"))
	assert.NoError(t, err)
	_, err = f.accounts.GetByStripeID(context.Background(), "acct_stranger")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, domain.StripeAccountActive, DeriveStatus(activeAccount("a")))
	assert.Equal(t, domain.StripeAccountPendingVerification, DeriveStatus(&stripe.Account{DetailsSubmitted: true}))
	assert.Equal(t, domain.StripeAccountPending, DeriveStatus(&stripe.Account{}))
}

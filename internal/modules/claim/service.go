package claim

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"kutable/internal/domain"
	"kutable/internal/modules/notification"
	"kutable/internal/repository"
)

const maxSlugSuffix = 50

type Config struct {
	AppURL          string
	TokenTTL        time.Duration
	DispatchTimeout time.Duration
}

type Service struct {
	barbers BarberRepository
	tokens  TokenRepository
	users   UserRepository
	invites InviteSender
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time

	inflight sync.WaitGroup
}

func NewService(barbers BarberRepository, tokens TokenRepository, users UserRepository, invites InviteSender, cfg Config, log zerolog.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	return &Service{
		barbers: barbers,
		tokens:  tokens,
		users:   users,
		invites: invites,
		cfg:     cfg,
		log:     log.With().Str("component", "claim").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start finds or creates the listing and hands out a claim link, reusing a live token.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	base := slug.Make(firstNonEmpty(req.Slug, req.BusinessName))
	if base == "" {
		return nil, fmt.Errorf("%w: slug or businessName is required", ErrValidation)
	}

	profile, err := s.barbers.GetBySlug(ctx, base)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if req.BusinessName == "" {
			return nil, ErrProfileNotFound
		}
		profile, err = s.createProfile(ctx, base, req)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case profile.IsClaimed:
		return nil, ErrAlreadyClaimed
	}

	now := s.now()
	tok, reused, err := s.liveToken(ctx, profile.ID, now)
	if err != nil {
		return nil, err
	}

	res := &StartResult{
		ClaimURL:  strings.TrimRight(s.cfg.AppURL, "/") + "/claim?token=" + tok.Token,
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
		ProfileID: profile.ID,
		Slug:      profile.Slug,
		Reused:    reused,
	}
	s.log.Info().Str("profile_id", profile.ID).Str("slug", profile.Slug).Bool("reused", reused).Msg("claim started")

	if req.Phone != "" || req.Email != "" {
		s.dispatchInvite(notification.ClaimInvite{
			BusinessName: profile.BusinessName,
			OwnerName:    firstNonEmpty(req.OwnerName, profile.OwnerName),
			Phone:        req.Phone,
			Email:        req.Email,
			ClaimURL:     res.ClaimURL,
			ExpiresAt:    tok.ExpiresAt,
		})
	}
	return res, nil
}

// Peek validates a token and returns the listing details for the claim form. Read-only.
func (s *Service) Peek(ctx context.Context, token string) (*Prefill, error) {
	tok, err := s.validToken(ctx, token)
	if err != nil {
		return nil, err
	}
	profile, err := s.barbers.GetByID(ctx, tok.BarberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if profile.IsClaimed {
		return nil, ErrAlreadyClaimed
	}
	return &Prefill{
		BusinessName: profile.BusinessName,
		OwnerName:    profile.OwnerName,
		Phone:        profile.Phone,
		Email:        profile.Email,
		City:         profile.City,
		Slug:         profile.Slug,
	}, nil
}

// Complete binds the listing to the user. The bind is a single conditional update, so of
// two racing callers only one wins; the loser gets ErrAlreadyClaimed.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, ErrTokenRequired
	}
	user, err := s.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}
	tok, err := s.validToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	profile, err := s.barbers.GetByID(ctx, tok.BarberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	bound, err := s.barbers.Claim(ctx, profile.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if !bound {
		s.log.Warn().Str("profile_id", profile.ID).Str("user_id", user.ID).Msg("claim lost to another user")
		return nil, ErrAlreadyClaimed
	}

	consumed, err := s.tokens.Consume(ctx, tok.ID, user.ID, s.now())
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("token_id", tok.ID).Msg("claim bound but token not consumed")
	case !consumed:
		s.log.Warn().Str("token_id", tok.ID).Msg("claim bound but token was already consumed")
	}

	s.log.Info().Str("profile_id", profile.ID).Str("user_id", user.ID).Msg("profile claimed")
	return &CompleteResult{Slug: profile.Slug, ProfileID: profile.ID}, nil
}

// Wait blocks until invite dispatches started by Start have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) resolveUser(ctx context.Context, req CompleteRequest) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	switch {
	case strings.TrimSpace(req.UserID) != "":
		user, err = s.users.GetByID(ctx, strings.TrimSpace(req.UserID))
	case strings.TrimSpace(req.Email) != "":
		user, err = s.users.GetByEmail(ctx, req.Email)
	default:
		return nil, fmt.Errorf("%w: userId or email is required", ErrValidation)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) validToken(ctx context.Context, token string) (*domain.ClaimToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	tok, err := s.tokens.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if tok.Consumed() {
		return nil, ErrTokenUsed
	}
	if tok.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

func (s *Service) createProfile(ctx context.Context, base string, req StartRequest) (*domain.BarberProfile, error) {
	for i := 1; i <= maxSlugSuffix; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		p := &domain.BarberProfile{
			Slug:         candidate,
			BusinessName: req.BusinessName,
			OwnerName:    strings.TrimSpace(req.OwnerName),
			Phone:        strings.TrimSpace(req.Phone),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			City:         strings.TrimSpace(req.City),
		}
		err := s.barbers.Create(ctx, p)
		if err == nil {
			return p, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create profile: %w", err)
		}
	}
	return nil, fmt.Errorf("create profile: no free slug for %q", base)
}

func (s *Service) liveToken(ctx context.Context, profileID string, now time.Time) (*domain.ClaimToken, bool, error) {
	tok, err := s.tokens.FindLive(ctx, profileID, now)
	if err == nil {
		return tok, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	value, err := newToken()
	if err != nil {
		return nil, false, err
	}
	tok = &domain.ClaimToken{BarberID: profileID, Token: value, ExpiresAt: now.Add(s.cfg.TokenTTL)}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, false, fmt.Errorf("create claim token: %w", err)
	}
	return tok, false, nil
}

func (s *Service) dispatchInvite(in notification.ClaimInvite) {
	if s.invites == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Msg("claim invite dispatch panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
		defer cancel()
		if err := s.invites.SendClaimInvite(ctx, in); err != nil {
			s.log.Warn().Err(err).Msg("claim invite dispatch failed")
		}
	}()
}

// newToken returns 32 random bytes, hex encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate claim token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

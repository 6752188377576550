package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Service verifies Supabase access tokens (HS256, user id in sub).
type Service struct {
	secret []byte
	issuer string
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwtlib.RegisteredClaims
}

func New(secret, issuer string) *Service {
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// GenerateToken signs a token shaped like Supabase's. Used by tests and local tooling.
func (s *Service) GenerateToken(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}

	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, errors.New("invalid claims")
	}

	return claims, nil
}

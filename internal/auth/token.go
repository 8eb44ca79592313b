package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. Access tokens carry no purpose claim.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

// Lifetimes of single-purpose tokens.
const (
	VerifyEmailTTL   = 24 * time.Hour
	ResetPasswordTTL = time.Hour
)

var (
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenPurpose is returned when a token is presented for the wrong action.
	ErrTokenPurpose = errors.New("token purpose mismatch")
)

// Claims is the token payload.
type Claims struct {
	UserID  string `json:"id"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and registration.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.Issuer == "" {
		cfg.Issuer = "presskit"
	}
	return &TokenService{cfg: cfg, now: time.Now}
}

// IssuePair creates an access and a refresh token for userID.
func (s *TokenService) IssuePair(userID string) (*TokenPair, error) {
	access, err := s.sign(userID, "", s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, "", s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueTemp creates a single-purpose token signed with the access secret.
func (s *TokenService) IssueTemp(userID, purpose string, ttl time.Duration) (string, error) {
	return s.sign(userID, purpose, s.cfg.AccessSecret, ttl)
}

// VerifyAccess validates an access token and returns its claims.
// Single-purpose tokens are rejected.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	claims, err := s.parse(token, s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.parse(token, s.cfg.RefreshSecret)
}

// VerifyTemp validates a single-purpose token for the expected purpose.
func (s *TokenService) VerifyTemp(token, purpose string) (*Claims, error) {
	claims, err := s.parse(token, s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrTokenPurpose
	}
	return claims, nil
}

// Decode parses a token without verifying its signature or expiry.
func Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Expiration returns the exp claim of a token without verifying it.
func Expiration(token string) (time.Time, error) {
	claims, err := Decode(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenInvalid
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's exp claim is in the past. Undecodable tokens count as expired.
func IsExpired(token string, now time.Time) bool {
	exp, err := Expiration(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

func (s *TokenService) sign(userID, purpose, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

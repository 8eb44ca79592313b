package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/repository"
)

// Auth errors surfaced to clients.
var (
	ErrInvalidCredentials   = apperror.Unauthorized("Invalid credentials")
	ErrAccountDeactivated   = apperror.Unauthorized("Your account has been deactivated")
	ErrNotAuthorized        = apperror.Unauthorized("Not authorized to access this route")
	ErrSubjectNotFound      = apperror.Unauthorized("User not found")
	ErrSubjectDeactivated   = apperror.Unauthorized("User account is deactivated")
	ErrTokenRevoked         = apperror.Unauthorized("Token has been revoked")
	ErrWrongPassword        = apperror.Unauthorized("Current password is incorrect")
	ErrUserNotFound         = apperror.NotFound("User not found")
	ErrEmailVerified        = apperror.BadRequest("Email already verified")
	ErrInvalidTempToken     = apperror.BadRequest("Invalid token")
	ErrUsernameTaken        = apperror.BadRequest("Username is already taken")
	ErrEmailNotVerified     = apperror.Forbidden("Please verify your email address to access this route")
	errBlacklistUnavailable = errors.New("token blacklist unavailable")
)

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users     UserStore
	Tokens    *auth.TokenService
	Blacklist TokenBlacklist
	Mailer    Notifier
	Payments  payment.Processor
	Logger    *slog.Logger
}

// AuthService handles registration, sessions and account maintenance.
type AuthService struct {
	users     UserStore
	tokens    *auth.TokenService
	blacklist TokenBlacklist
	mailer    Notifier
	payments  payment.Processor
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(d AuthDeps) *AuthService {
	if d.Payments == nil {
		d.Payments = payment.Disabled{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &AuthService{
		users:     d.Users,
		tokens:    d.Tokens,
		blacklist: d.Blacklist,
		mailer:    d.Mailer,
		payments:  d.Payments,
		logger:    d.Logger.With("component", "service.auth"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Session is returned by register and login.
type Session struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// RegisterInput defines input for registration.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

func (in *RegisterInput) normalize() {
	in.Email = model.NormalizeEmail(in.Email)
	in.Username = model.NormalizeUsername(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in RegisterInput) validate() error {
	var msgs []string
	if !model.IsValidEmail(in.Email) {
		msgs = append(msgs, "Please provide a valid email")
	}
	if !model.IsValidUsername(in.Username) {
		msgs = append(msgs, "Username must be 3-30 characters and contain only letters, numbers, underscores and hyphens")
	}
	msgs = append(msgs, auth.CheckPasswordStrength(in.Password)...)
	return apperror.Validation(msgs...)
}

// Register creates an account, its payment customer and a session, then sends
// the welcome email carrying a 24h verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	for _, f := range []struct{ field, value string }{{"email", in.Email}, {"username", in.Username}} {
		exists, err := s.users.UserExists(ctx, f.field, f.value)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", f.field, err)
		}
		if exists {
			return nil, &apperror.DuplicateError{Field: f.field}
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.NewUser(in.Email, in.Username, hash, s.now())
	user.Profile.FirstName = in.FirstName
	user.Profile.LastName = in.LastName

	customerID, err := s.payments.CreateCustomer(ctx, user.Email, user.DisplayName())
	if err != nil {
		return nil, err
	}
	user.Subscription.CustomerID = customerID

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	verifyToken, err := s.tokens.IssueTemp(user.ID, auth.PurposeVerifyEmail, auth.VerifyEmailTTL)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendWelcome(ctx, user.Email, user.DisplayName(), verifyToken); err != nil {
		s.logger.Warn("welcome_email_failed", "user_id", user.ID, "error", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user_registered", "user_id", user.ID)
	return &Session{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Login checks credentials and stamps lastLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperror.BadRequest("Please provide an email and password")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.SetLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return &Session{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout revokes token for the rest of its lifetime. A blacklist write that
// fails is logged and the logout still succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	exp, err := auth.Expiration(token)
	if err != nil {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, auth.Fingerprint(token), exp.Sub(s.now())); err != nil {
		s.logger.Warn("token_blacklist_failed", "error", err)
	}
	return nil
}

// Authenticate resolves a bearer token to an active user. A blacklist that
// cannot be read does not block authentication.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotAuthorized
	}
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsTokenBlacklisted(ctx, auth.Fingerprint(token))
	if err != nil {
		s.logger.Warn("blacklist_check_failed", "error", fmt.Errorf("%w: %v", errBlacklistUnavailable, err))
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, apperror.ErrInvalidID) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrSubjectDeactivated
	}
	return user, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.BadRequest("Refresh token is required")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrSubjectDeactivated
	}
	return s.tokens.IssuePair(user.ID)
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput holds the editable account fields. Nil fields are unchanged.
type UpdateProfileInput struct {
	Username      *string
	FirstName     *string
	LastName      *string
	Avatar        *string
	Bio           *string
	Notifications *bool
	Privacy       *string
}

// UpdateProfile applies profile edits.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*model.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := model.NormalizeUsername(*in.Username)
		if !model.IsValidUsername(username) {
			return nil, apperror.Validation("Username must be 3-30 characters and contain only letters, numbers, underscores and hyphens")
		}
		if username != user.Username {
			exists, err := s.users.UserExists(ctx, "username", username)
			if err != nil {
				return nil, fmt.Errorf("check username: %w", err)
			}
			if exists {
				return nil, ErrUsernameTaken
			}
			user.Username = username
		}
	}
	if in.Privacy != nil {
		if *in.Privacy != model.PrivacyPublic && *in.Privacy != model.PrivacyPrivate {
			return nil, apperror.Validation("Privacy must be public or private")
		}
		user.Settings.Privacy = *in.Privacy
	}
	setString(&user.Profile.FirstName, in.FirstName)
	setString(&user.Profile.LastName, in.LastName)
	setString(&user.Profile.Avatar, in.Avatar)
	setString(&user.Profile.Bio, in.Bio)
	if in.Notifications != nil {
		user.Settings.Notifications = *in.Notifications
	}
	user.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := auth.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrWrongPassword
	}
	return s.setPassword(ctx, user, next)
}

// ForgotPassword emails a 1h reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	token, err := s.tokens.IssueTemp(user.ID, auth.PurposeResetPassword, auth.ResetPasswordTTL)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, user.Email, token)
}

// ResetPassword sets a new password from a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.userFromTempToken(ctx, token, auth.PurposeResetPassword)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, password)
}

// VerifyEmail marks the token's user as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userFromTempToken(ctx, token, auth.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if user.Settings.EmailVerified {
		return nil
	}
	user.Settings.EmailVerified = true
	user.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, user)
}

// ResendVerification issues a fresh verification link.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if user.Settings.EmailVerified {
		return ErrEmailVerified
	}
	token, err := s.tokens.IssueTemp(user.ID, auth.PurposeVerifyEmail, auth.VerifyEmailTTL)
	if err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, user.Email, user.DisplayName(), token)
}

func (s *AuthService) userFromTempToken(ctx context.Context, token, purpose string) (*model.User, error) {
	claims, err := s.tokens.VerifyTemp(token, purpose)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperror.Wrap(http.StatusBadRequest, "Token expired", err)
		}
		return nil, ErrInvalidTempToken
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, apperror.ErrInvalidID) {
			return nil, ErrInvalidTempToken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) setPassword(ctx context.Context, user *model.User, password string) error {
	if err := apperror.Validation(auth.CheckPasswordStrength(password)...); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, user)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

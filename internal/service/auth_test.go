package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/model"
)

const strongPassword = "Sup3r$ecret"

func newTestTokens() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	})
}

type authFixture struct {
	svc       *AuthService
	users     *fakeUsers
	tokens    *auth.TokenService
	blacklist *fakeBlacklist
	mailer    *fakeMailer
}

func newAuthFixture(t *testing.T, users ...*model.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:     newFakeUsers(users...),
		tokens:    newTestTokens(),
		blacklist: &fakeBlacklist{},
		mailer:    &fakeMailer{},
	}
	f.svc = NewAuthService(AuthDeps{
		Users:     f.users,
		Tokens:    f.tokens,
		Blacklist: f.blacklist,
		Mailer:    f.mailer,
	})
	return f
}

func mustRegister(t *testing.T, f *authFixture, email, username string) *Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: username,
		Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return sess
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)

	sess := mustRegister(t, f, "  Artist@Example.com ", "DJ_Nova")

	if sess.User.Email != "artist@example.com" {
		t.Errorf("expected normalized email, got %q", sess.User.Email)
	}
	if sess.User.Username != "dj_nova" {
		t.Errorf("expected lowercased username, got %q", sess.User.Username)
	}
	if sess.User.Tier != model.TierFree || sess.User.Settings.EmailVerified {
		t.Errorf("unexpected defaults: tier=%s verified=%v", sess.User.Tier, sess.User.Settings.EmailVerified)
	}
	if sess.Token == "" || sess.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	claims, err := f.tokens.VerifyAccess(sess.Token)
	if err != nil || claims.UserID != sess.User.ID {
		t.Fatalf("access token does not identify the user: %v", err)
	}

	welcome := f.mailer.byKind("welcome")
	if len(welcome) != 1 {
		t.Fatalf("expected one welcome email, got %d", len(welcome))
	}
	if _, err := f.tokens.VerifyTemp(welcome[0].Body, auth.PurposeVerifyEmail); err != nil {
		t.Errorf("welcome email carries an invalid verification token: %v", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	f := newAuthFixture(t)
	mustRegister(t, f, "artist@example.com", "artist")

	tests := []struct {
		name      string
		email     string
		username  string
		wantField string
	}{
		{"email", "ARTIST@example.com", "other", "email"},
		{"username", "other@example.com", "Artist", "username"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), RegisterInput{
				Email:    test.email,
				Username: test.username,
				Password: strongPassword,
			})
			var dup *apperror.DuplicateError
			if !errors.As(err, &dup) || dup.Field != test.wantField {
				t.Fatalf("expected duplicate %s, got %v", test.wantField, err)
			}
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad_email", RegisterInput{Email: "nope", Username: "artist", Password: strongPassword}},
		{"short_username", RegisterInput{Email: "a@b.co", Username: "ab", Password: strongPassword}},
		{"weak_password", RegisterInput{Email: "a@b.co", Username: "artist", Password: "password"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), test.in)
			var ve *apperror.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_WelcomeEmailFailureIsNotFatal(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.err = errors.New("smtp down")

	if _, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "artist@example.com",
		Username: "artist",
		Password: strongPassword,
	}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, "Artist@Example.com", strongPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.User.ID != reg.User.ID {
		t.Fatal("logged in as the wrong user")
	}
	if stored := f.users.get(reg.User.ID); stored.LastLoginAt == nil {
		t.Error("expected lastLogin to be stamped")
	}

	if _, err := f.svc.Login(ctx, "artist@example.com", "Wr0ng$pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "nobody@example.com", strongPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "", ""); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestLogin_Deactivated(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")

	u := f.users.get(reg.User.ID)
	u.IsActive = false
	_ = f.users.UpdateUser(context.Background(), &u)

	_, err := f.svc.Login(context.Background(), "artist@example.com", strongPassword)
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("expected deactivated error, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	user, err := f.svc.Authenticate(ctx, reg.Token)
	if err != nil || user.ID != reg.User.ID {
		t.Fatalf("authenticate: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected not authorized for empty token, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, reg.RefreshToken); !errors.Is(err, auth.ErrTokenInvalid) {
		t.Errorf("refresh token must not authenticate, got %v", err)
	}

	verify, _ := f.tokens.IssueTemp(reg.User.ID, auth.PurposeVerifyEmail, time.Hour)
	if _, err := f.svc.Authenticate(ctx, verify); err == nil {
		t.Error("single-purpose token must not authenticate")
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	if err := f.svc.Logout(ctx, reg.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	ttl, ok := f.blacklist.revoked[auth.Fingerprint(reg.Token)]
	if !ok {
		t.Fatal("token was not blacklisted")
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("expected ttl bounded by token lifetime, got %s", ttl)
	}

	if _, err := f.svc.Authenticate(ctx, reg.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestLogout_BlacklistUnavailable(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	f.blacklist.err = errors.New("dial tcp: connection refused")

	if err := f.svc.Logout(context.Background(), reg.Token); err != nil {
		t.Fatalf("expected logout to succeed without the blacklist, got %v", err)
	}
	if len(f.blacklist.revoked) != 0 {
		t.Errorf("expected nothing recorded, got %d entries", len(f.blacklist.revoked))
	}
}

func TestAuthenticate_BlacklistUnavailableFailsOpen(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	f.blacklist.err = errors.New("redis unavailable")

	if _, err := f.svc.Authenticate(context.Background(), reg.Token); err != nil {
		t.Fatalf("expected authentication to proceed, got %v", err)
	}
}

func TestAuthenticate_Deactivated(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")

	u := f.users.get(reg.User.ID)
	u.IsActive = false
	_ = f.users.UpdateUser(context.Background(), &u)

	if _, err := f.svc.Authenticate(context.Background(), reg.Token); !errors.Is(err, ErrSubjectDeactivated) {
		t.Fatalf("expected deactivated error, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")

	pair, err := f.svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.tokens.VerifyAccess(pair.AccessToken); err != nil {
		t.Errorf("refreshed access token invalid: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), reg.Token); err == nil {
		t.Error("access token must not be accepted as refresh token")
	}
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	token := f.mailer.byKind("welcome")[0].Body
	if err := f.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !f.users.get(reg.User.ID).Settings.EmailVerified {
		t.Fatal("expected email to be verified")
	}

	if err := f.svc.ResendVerification(ctx, reg.User.ID); !errors.Is(err, ErrEmailVerified) {
		t.Errorf("expected already verified, got %v", err)
	}

	reset, _ := f.tokens.IssueTemp(reg.User.ID, auth.PurposeResetPassword, time.Hour)
	if err := f.svc.VerifyEmail(ctx, reset); !errors.Is(err, ErrInvalidTempToken) {
		t.Errorf("reset token must not verify email, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	if err := f.svc.ForgotPassword(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	if err := f.svc.ForgotPassword(ctx, "artist@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	resets := f.mailer.byKind("reset")
	if len(resets) != 1 {
		t.Fatalf("expected one reset email, got %d", len(resets))
	}

	const next = "N3w$ecret!"
	if err := f.svc.ResetPassword(ctx, resets[0].Body, next); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.svc.Login(ctx, "artist@example.com", next); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := f.svc.Login(ctx, "artist@example.com", strongPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still works: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, reg.User.ID, "Wr0ng$pass", "N3w$ecret!"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected wrong password, got %v", err)
	}
	var ve *apperror.ValidationError
	if err := f.svc.ChangePassword(ctx, reg.User.ID, strongPassword, "weak"); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, reg.User.ID, strongPassword, "N3w$ecret!"); err != nil {
		t.Fatalf("change password: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	reg := mustRegister(t, f, "artist@example.com", "artist")
	other := mustRegister(t, f, "other@example.com", "taken")
	ctx := context.Background()

	first, bio, private := " Nova ", "Producer", model.PrivacyPrivate
	user, err := f.svc.UpdateProfile(ctx, reg.User.ID, UpdateProfileInput{
		FirstName: &first,
		Bio:       &bio,
		Privacy:   &private,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if user.Profile.FirstName != "Nova" || user.Profile.Bio != "Producer" || user.Settings.Privacy != private {
		t.Errorf("profile not applied: %+v", user.Profile)
	}

	taken := other.User.Username
	if _, err := f.svc.UpdateProfile(ctx, reg.User.ID, UpdateProfileInput{Username: &taken}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected username taken, got %v", err)
	}
}

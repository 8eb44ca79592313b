package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/handler/dto"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
)

// AuthService is the account surface used by AuthHandler.
// *service.AuthService implements it.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in service.UpdateProfileInput) (*model.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, userID string) error
}

var _ AuthService = (*service.AuthService)(nil)

// AuthHandler handles registration, sessions and account maintenance.
type AuthHandler struct {
	svc    AuthService
	errors response.ErrorWriter
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService, errs response.ErrorWriter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, errors: errs, logger: componentLogger(logger, "auth")}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	session, err := h.svc.Register(r.Context(), req.ToInput())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, session, "User registered successfully")
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, session, "Login successful")
}

// Logout handles POST /auth/logout. The presented token is revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), p.Token); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Logged out successfully")
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, pair, "")
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	user, err := h.svc.Me(r.Context(), p.UserID())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, dto.UserResponse{User: user}, "")
}

// UpdateProfile handles PUT /auth/me.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), p.UserID(), req.ToInput())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, dto.UserResponse{User: user}, "Profile updated successfully")
}

// ChangePassword handles PUT /auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), p.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	h.logger.Info("password_changed", "user_id", p.UserID())
	response.Success(w, http.StatusOK, nil, "Password updated successfully")
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Password reset email sent")
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Password reset successful")
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Token); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Email verified successfully")
}

// ResendVerification handles POST /auth/resend-verification.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), p.UserID()); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Verification email sent")
}

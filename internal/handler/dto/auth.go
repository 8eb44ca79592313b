// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/service"
)

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// ToInput converts the request to service input.
func (r RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		Email:     r.Email,
		Username:  r.Username,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest carries a bare email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// TokenRequest carries a single-purpose token.
type TokenRequest struct {
	Token string `json:"token"`
}

// ResetPasswordRequest represents the request body for a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfileRequest represents the editable account fields.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	Username      *string `json:"username,omitempty"`
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
	Privacy       *string `json:"privacy,omitempty"`
}

// ToInput converts the request to service input.
func (r UpdateProfileRequest) ToInput() service.UpdateProfileInput {
	return service.UpdateProfileInput{
		Username:      r.Username,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Avatar:        r.Avatar,
		Bio:           r.Bio,
		Notifications: r.Notifications,
		Privacy:       r.Privacy,
	}
}

// UserResponse wraps a user for auth responses.
type UserResponse struct {
	User *model.User `json:"user"`
}

package model

import (
	"regexp"
	"strings"
	"time"
)

// Tier constants. A user's tier gates EPK quota and route access.
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// ValidTiers contains all valid tier values.
var ValidTiers = []string{TierFree, TierPremium, TierPro, TierEnterprise}

// Subscription status values mirrored from the payment processor.
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
	SubscriptionTrialing = "trialing"
)

// Privacy values.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Profile holds public profile fields.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Subscription mirrors the user's billing state at the payment processor.
type Subscription struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status,omitempty"`
	CustomerID       string     `json:"customerId,omitempty"`
	SubscriptionID   string     `json:"subscriptionId,omitempty"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Settings holds per-user preferences.
type Settings struct {
	Notifications bool   `json:"notifications"`
	Privacy       string `json:"privacy"`
	EmailVerified bool   `json:"emailVerified"`
}

// User represents an account that owns EPKs.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // Never serialize
	Tier         string       `json:"tier"`
	Profile      Profile      `json:"profile"`
	Subscription Subscription `json:"subscription"`
	Settings     Settings     `json:"settings"`
	IsActive     bool         `json:"isActive"`
	LastLoginAt  *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// PublicProfile is the subset of a user safe to show to anyone.
type PublicProfile struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Profile  Profile `json:"profile"`
	Tier     string  `json:"tier"`
}

// NewUser builds a user with registration defaults applied.
func NewUser(email, username, passwordHash string, now time.Time) *User {
	return &User{
		ID:           NewID(),
		Email:        NormalizeEmail(email),
		Username:     NormalizeUsername(username),
		PasswordHash: passwordHash,
		Tier:         TierFree,
		Subscription: Subscription{Plan: TierFree},
		Settings: Settings{
			Notifications: true,
			Privacy:       PrivacyPublic,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Public returns the public view of the user.
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, Profile: u.Profile, Tier: u.Tier}
}

// DisplayName returns the first name when set, otherwise the username.
func (u *User) DisplayName() string {
	if u.Profile.FirstName != "" {
		return u.Profile.FirstName
	}
	return u.Username
}

// HasTier reports whether the user's tier is one of tiers.
func (u *User) HasTier(tiers ...string) bool {
	for _, t := range tiers {
		if u.Tier == t {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// IsValidEmail reports whether email looks like an address.
func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// IsValidUsername checks length 3-30 and the allowed character set.
func IsValidUsername(username string) bool {
	n := len(username)
	return n >= 3 && n <= 30 && usernamePattern.MatchString(username)
}

// IsValidTier reports whether tier is a known tier.
func IsValidTier(tier string) bool {
	for _, t := range ValidTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// TierForPlan maps a billing plan name to the tier it grants.
func TierForPlan(plan string) string {
	switch plan {
	case "basic":
		return TierPremium
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// EPKQuota returns how many EPKs a tier may own. unlimited is true when there is no cap.
func EPKQuota(tier string) (limit int, unlimited bool) {
	switch tier {
	case TierEnterprise:
		return 0, true
	case TierPro:
		return 5, false
	case TierPremium:
		return 3, false
	default:
		return 1, false
	}
}

// Package service provides business logic for the application.
package service

import (
	"context"
	"time"

	"github.com/presskit/presskit/internal/cache"
	"github.com/presskit/presskit/internal/mail"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/repository"
)

// UserStore persists users. *repository.Repository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UserExists(ctx context.Context, field, value string) (bool, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// EPKStore persists EPKs. *repository.Repository implements it.
type EPKStore interface {
	CreateEPK(ctx context.Context, epk *model.EPK) error
	GetEPK(ctx context.Context, id string) (*model.EPK, error)
	GetEPKBySlug(ctx context.Context, slug string) (*model.EPK, error)
	UpdateEPK(ctx context.Context, epk *model.EPK) error
	DeleteEPK(ctx context.Context, id string) error
	CountEPKsByUser(ctx context.Context, userID string) (int64, error)
	EPKIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// InquiryStore persists contact inquiries.
type InquiryStore interface {
	CreateInquiry(ctx context.Context, q *model.ContactInquiry) error
	GetInquiry(ctx context.Context, id string) (*model.ContactInquiry, error)
	UpdateInquiry(ctx context.Context, q *model.ContactInquiry) error
	ListInquiries(ctx context.Context, f repository.InquiryFilter) (*repository.Page[model.ContactInquiry], error)
	InquiryStats(ctx context.Context, epkIDs []string) (*model.InquiryStats, error)
}

// AnalyticsStore reads persisted analytics. Records go away with their EPK.
type AnalyticsStore interface {
	GetAnalytics(ctx context.Context, epkID string) (*model.Analytics, error)
}

// PaymentEventStore deduplicates webhook deliveries.
type PaymentEventStore interface {
	MarkPaymentEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	ForgetPaymentEvent(ctx context.Context, eventID string) error
}

// TokenBlacklist records revoked tokens. *cache.Cache implements it.
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, fingerprint string) (bool, error)
}

// EPKCache is the read-through cache for public EPK pages, keyed by EPK id
// with a slug-to-id index in front.
type EPKCache interface {
	GetEPK(ctx context.Context, id string) ([]byte, bool)
	SetEPK(ctx context.Context, id string, data []byte)
	DeleteEPK(ctx context.Context, id string) error
	GetEPKIDBySlug(ctx context.Context, slug string) (string, bool)
	SetEPKSlug(ctx context.Context, slug, id string)
	DeleteEPKSlug(ctx context.Context, slug string) error
}

// LiveCounters tracks real-time page views and interactions.
type LiveCounters interface {
	RecordPageView(ctx context.Context, epkID, visitorHash string) (bool, error)
	RecordInteraction(ctx context.Context, epkID string, interaction model.InteractionType) error
	LiveCounters(ctx context.Context, epkID string) (*model.LiveCounters, error)
	DeleteAnalytics(ctx context.Context, epkID string) error
}

// EventPublisher forwards analytics events to the stream worker.
type EventPublisher interface {
	PublishAsync(event *model.AnalyticsEvent)
}

// Notifier sends transactional email. *mail.Mailer implements it.
type Notifier interface {
	SendWelcome(ctx context.Context, to, name, verifyToken string) error
	SendVerification(ctx context.Context, to, name, verifyToken string) error
	SendPasswordReset(ctx context.Context, to, resetToken string) error
	SendContactNotification(ctx context.Context, to string, n mail.ContactNotification) error
	SendInquiryResponse(ctx context.Context, to, name, originalSubject, message string) error
	SendSubscriptionConfirmation(ctx context.Context, to, plan, startDate string) error
}

var (
	_ UserStore         = (*repository.Repository)(nil)
	_ EPKStore          = (*repository.Repository)(nil)
	_ InquiryStore      = (*repository.Repository)(nil)
	_ AnalyticsStore    = (*repository.Repository)(nil)
	_ PaymentEventStore = (*repository.Repository)(nil)
	_ Notifier          = (*mail.Mailer)(nil)
	_ TokenBlacklist    = (*cache.Cache)(nil)
	_ EPKCache          = (*cache.Cache)(nil)
	_ LiveCounters      = (*cache.Cache)(nil)
)

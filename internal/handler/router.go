package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/presskit/presskit/internal/middleware"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
)

// RouterConfig carries the middleware settings of the HTTP surface.
type RouterConfig struct {
	Logger        *slog.Logger
	Errors        response.ErrorWriter
	APIPrefix     string
	Security      middleware.SecurityConfig
	CORS          middleware.CORSConfig
	MaxBodySize   int64
	RateLimit     middleware.RateLimitConfig
	APILimit      middleware.RateLimitRule
	AuthLimit     middleware.RateLimitRule
	ContactLimit  middleware.RateLimitRule
	Authenticator middleware.Authenticator
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Root    *Handler
	Health  *HealthHandler
	Metrics *MetricsHandler // nil disables /metrics
	Auth    *AuthHandler
	EPKs    *Resource[model.EPK]
	EPK     *EPKHandler
	Contact *ContactHandler
	Billing *BillingHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	errs := cfg.Errors

	r := chi.NewRouter()
	r.NotFound(h.Root.NotFound)
	r.MethodNotAllowed(h.Root.MethodNotAllowed)

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, errs))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Health and root info
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	if h.Metrics != nil {
		r.Get("/metrics", h.Metrics.Metrics)
	}
	r.Get("/", h.Root.Info)

	protect := middleware.Protect(middleware.AuthConfig{
		Logger:        cfg.Logger,
		Authenticator: cfg.Authenticator,
		Errors:        errs,
	})
	authLimit := middleware.RateLimit(cfg.RateLimit, cfg.AuthLimit)
	contactLimit := middleware.RateLimit(cfg.RateLimit, cfg.ContactLimit)
	validID := middleware.ValidateIDParams(errs, "id")
	paidTier := middleware.Authorize(errs, model.TierPremium, model.TierPro, model.TierEnterprise)

	r.Route(cfg.APIPrefix, func(api chi.Router) {
		api.Use(middleware.RateLimit(cfg.RateLimit, cfg.APILimit))
		api.Get("/", h.Root.Info)

		api.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxBodySize, errs))

			// Auth
			r.With(authLimit).Post("/auth/register", h.Auth.Register)
			r.With(authLimit).Post("/auth/login", h.Auth.Login)
			r.With(authLimit).Post("/auth/forgot-password", h.Auth.ForgotPassword)
			r.Post("/auth/refresh", h.Auth.Refresh)
			r.Post("/auth/reset-password", h.Auth.ResetPassword)
			r.Post("/auth/verify-email", h.Auth.VerifyEmail)
			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Post("/auth/logout", h.Auth.Logout)
				r.Get("/auth/me", h.Auth.Me)
				r.Put("/auth/me", h.Auth.UpdateProfile)
				r.Put("/auth/password", h.Auth.ChangePassword)
				r.Post("/auth/resend-verification", h.Auth.ResendVerification)
			})

			// Public EPK pages
			r.With(middleware.ValidateSlugParam(errs, "slug", service.ErrEPKNotFound)).
				Get("/epks/slug/{slug}", h.EPK.GetBySlug)
			r.With(validID).Post("/epks/{id}/interactions", h.EPK.TrackInteraction)
			r.With(contactLimit, middleware.ValidateIDParams(errs, "epkId")).
				Post("/epks/{epkId}/contact", h.Contact.Submit)

			// EPK management
			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/epks", h.EPKs.List)
				r.Get("/epks/by/{field}/{value}", h.EPKs.GetByField)
				r.Get("/epks/exists/{field}/{value}", h.EPKs.Exists)
				r.Post("/epks", h.EPK.Create)
				r.With(validID).Get("/epks/{id}", h.EPK.Get)
				r.With(validID).Put("/epks/{id}", h.EPK.Update)
				r.With(validID).Delete("/epks/{id}", h.EPK.Delete)
				r.With(validID).Delete("/epks/{id}/media", h.EPK.DeleteMedia)
				r.With(validID).Get("/epks/{id}/analytics", h.EPK.Analytics)
			})

			// Contact inbox
			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/contact/inquiries", h.Contact.List)
				r.Get("/contact/stats", h.Contact.Stats)
				r.With(validID).Patch("/contact/{id}/status", h.Contact.UpdateStatus)
				r.With(validID).Post("/contact/{id}/respond", h.Contact.Respond)
				r.With(validID).Post("/contact/{id}/notes", h.Contact.AddNote)
			})

			// Billing
			r.Post("/billing/webhook", h.Billing.Webhook)
			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/billing/subscription", h.Billing.GetSubscription)
				r.With(middleware.RequireVerifiedEmail(errs)).Post("/billing/subscription", h.Billing.CreateSubscription)
				r.With(paidTier).Put("/billing/subscription", h.Billing.UpdateSubscription)
				r.Delete("/billing/subscription", h.Billing.CancelSubscription)
				r.Get("/billing/payment-methods", h.Billing.ListPaymentMethods)
				r.Post("/billing/payment-methods", h.Billing.AddPaymentMethod)
				r.Delete("/billing/payment-methods/{id}", h.Billing.RemovePaymentMethod)
				r.Post("/billing/payment-intents", h.Billing.CreatePaymentIntent)
				r.Get("/billing/invoices/{id}", h.Billing.GetInvoice)
			})
		})

		// Media uploads carry their own body cap sized to the file limits.
		api.With(protect, validID).Post("/epks/{id}/media", h.EPK.UploadMedia)
	})

	return r
}

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/presskit/presskit/internal/handler/dto"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/service"
)

// signatureHeader carries the processor's webhook signature.
const signatureHeader = "Stripe-Signature"

// BillingService is the billing surface used by BillingHandler.
// *service.BillingService implements it.
type BillingService interface {
	GetSubscription(ctx context.Context, user *model.User) (*payment.Subscription, error)
	CreateSubscription(ctx context.Context, user *model.User, plan, paymentMethodID string) (*payment.Subscription, error)
	UpdateSubscription(ctx context.Context, user *model.User, plan string) (*payment.Subscription, error)
	CancelSubscription(ctx context.Context, user *model.User) error
	ListPaymentMethods(ctx context.Context, user *model.User) ([]payment.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, user *model.User, paymentMethodID string) error
	RemovePaymentMethod(ctx context.Context, user *model.User, paymentMethodID string) error
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error)
	GetInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

var _ BillingService = (*service.BillingService)(nil)

// BillingHandler handles subscriptions, payment methods and processor webhooks.
type BillingHandler struct {
	svc    BillingService
	errors response.ErrorWriter
	logger *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(svc BillingService, errs response.ErrorWriter, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{svc: svc, errors: errs, logger: componentLogger(logger, "billing")}
}

// Webhook handles POST /billing/webhook. The raw body is verified against
// the signature header before anything is applied.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = errBodyTooLarge
		}
		h.errors.Write(w, r, err)
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, map[string]bool{"received": true}, "")
}

// GetSubscription handles GET /billing/subscription.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	sub, err := h.svc.GetSubscription(r.Context(), p.User)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, sub, "")
}

// CreateSubscription handles POST /billing/subscription.
func (h *BillingHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.SubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	sub, err := h.svc.CreateSubscription(r.Context(), p.User, req.Plan, req.PaymentMethodID)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, sub, "Subscription created successfully")
}

// UpdateSubscription handles PUT /billing/subscription.
func (h *BillingHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.SubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	sub, err := h.svc.UpdateSubscription(r.Context(), p.User, req.Plan)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, sub, "Subscription updated successfully")
}

// CancelSubscription handles DELETE /billing/subscription.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	if err := h.svc.CancelSubscription(r.Context(), p.User); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Subscription canceled successfully")
}

// ListPaymentMethods handles GET /billing/payment-methods.
func (h *BillingHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	methods, err := h.svc.ListPaymentMethods(r.Context(), p.User)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, methods, "")
}

// AddPaymentMethod handles POST /billing/payment-methods.
func (h *BillingHandler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	var req dto.PaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	if err := h.svc.AddPaymentMethod(r.Context(), p.User, req.PaymentMethodID); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, nil, "Payment method added successfully")
}

// RemovePaymentMethod handles DELETE /billing/payment-methods/{id}.
func (h *BillingHandler) RemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.errors)
	if !ok {
		return
	}
	if err := h.svc.RemovePaymentMethod(r.Context(), p.User, chi.URLParam(r, "id")); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, nil, "Payment method removed successfully")
}

// CreatePaymentIntent handles POST /billing/payment-intents.
func (h *BillingHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r, h.errors); !ok {
		return
	}
	var req dto.PaymentIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	secret, err := h.svc.CreatePaymentIntent(r.Context(), req.Amount, req.Currency)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, dto.PaymentIntentResponse{ClientSecret: secret}, "")
}

// GetInvoice handles GET /billing/invoices/{id}.
func (h *BillingHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r, h.errors); !ok {
		return
	}
	invoice, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, invoice, "")
}

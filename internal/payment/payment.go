// Package payment adapts the payment processor behind a provider-neutral interface.
package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/presskit/presskit/internal/apperror"
)

// Client-facing messages for processor failures. The provider's own error
// text is logged, never returned.
const (
	MsgCreateCustomer       = "Failed to create customer"
	MsgCreateSubscription   = "Failed to create subscription"
	MsgUpdateSubscription   = "Failed to update subscription"
	MsgCancelSubscription   = "Failed to cancel subscription"
	MsgGetSubscription      = "Failed to get subscription details"
	MsgGetPaymentMethods    = "Failed to get payment methods"
	MsgAddPaymentMethod     = "Failed to add payment method"
	MsgRemovePaymentMethod  = "Failed to remove payment method"
	MsgCreatePaymentIntent  = "Failed to create payment intent"
	MsgGetInvoice           = "Failed to get invoice details"
	MsgWebhookSignature     = "Webhook signature verification failed"
	MsgPaymentsNotAvailable = "Payments are not configured"
)

// Webhook event types the billing service reacts to.
const (
	EventPaymentSucceeded     = "payment_intent.succeeded"
	EventPaymentFailed        = "payment_intent.payment_failed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaid          = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// ErrNotConfigured is returned by Disabled for every billing operation.
var ErrNotConfigured = apperror.New(http.StatusServiceUnavailable, MsgPaymentsNotAvailable)

// Subscription is the processor's view of a subscription.
type Subscription struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customerId"`
	Status            string     `json:"status"`
	PriceID           string     `json:"priceId"`
	PriceName         string     `json:"priceName,omitempty"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
}

// PaymentMethod is a stored card.
type PaymentMethod struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"expMonth"`
	ExpYear  int64  `json:"expYear"`
	Brand    string `json:"brand"`
}

// Invoice summarizes one invoice.
type Invoice struct {
	ID               string     `json:"id"`
	Number           string     `json:"number"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paidAt"`
	HostedInvoiceURL string     `json:"hostedInvoiceUrl"`
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type string
	// Subscription is set for customer.subscription.* events.
	Subscription *Subscription
	// CustomerID is set when the event object names a customer.
	CustomerID string
	// ObjectID is the ID of the event's data object.
	ObjectID string
}

// Processor is the payment processor.
type Processor interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID, priceID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Disabled is used when no processor key is configured. Customer creation
// succeeds with an empty ID so registration still works; everything else fails.
type Disabled struct{}

var _ Processor = Disabled{}

func (Disabled) CreateCustomer(context.Context, string, string) (string, error) { return "", nil }

func (Disabled) CreateSubscription(context.Context, string, string, string) (*Subscription, error) {
	return nil, ErrNotConfigured
}

func (Disabled) UpdateSubscription(context.Context, string, string) (*Subscription, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CancelSubscription(context.Context, string) error { return ErrNotConfigured }

func (Disabled) GetSubscription(context.Context, string) (*Subscription, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ListPaymentMethods(context.Context, string) ([]PaymentMethod, error) {
	return nil, ErrNotConfigured
}

func (Disabled) AttachPaymentMethod(context.Context, string, string) error { return ErrNotConfigured }

func (Disabled) DetachPaymentMethod(context.Context, string) error { return ErrNotConfigured }

func (Disabled) CreatePaymentIntent(context.Context, int64, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) GetInvoice(context.Context, string) (*Invoice, error) { return nil, ErrNotConfigured }

func (Disabled) ParseWebhook([]byte, string) (*Event, error) { return nil, ErrNotConfigured }

// unixTime converts a processor timestamp, treating zero as unset.
func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

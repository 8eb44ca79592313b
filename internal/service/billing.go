package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/repository"
)

// Billing errors surfaced to clients.
var (
	ErrInvalidPlan            = apperror.BadRequest("Invalid subscription plan")
	ErrPaymentMethodRequired  = apperror.BadRequest("Please provide a payment method")
	ErrSubscriptionExists     = apperror.BadRequest("You already have an active subscription")
	ErrNoSubscription         = apperror.NotFound("No active subscription found")
	ErrPaymentMethodNotFound  = apperror.NotFound("Payment method not found")
	ErrInvalidAmount          = apperror.BadRequest("Amount must be greater than zero")
	ErrInvoiceIDRequired      = apperror.BadRequest("Invoice ID is required")
	errWebhookUserUnavailable = errors.New("webhook customer lookup failed")
)

// Webhook outcomes reported to metrics.
const (
	webhookProcessed = "processed"
	webhookDuplicate = "duplicate"
	webhookFailed    = "failed"
)

const defaultCurrency = "usd"

// BillingDeps groups the collaborators of BillingService.
type BillingDeps struct {
	Users    UserStore
	Events   PaymentEventStore
	Payments payment.Processor
	Mailer   Notifier
	// Prices maps plan names to processor price IDs.
	Prices  map[string]string
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// BillingService manages subscriptions and processes payment webhooks.
type BillingService struct {
	users    UserStore
	events   PaymentEventStore
	payments payment.Processor
	mailer   Notifier
	prices   map[string]string
	plans    map[string]string
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(d BillingDeps) *BillingService {
	if d.Payments == nil {
		d.Payments = payment.Disabled{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoop()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	plans := make(map[string]string, len(d.Prices))
	for plan, price := range d.Prices {
		plans[price] = plan
	}
	return &BillingService{
		users:    d.Users,
		events:   d.Events,
		payments: d.Payments,
		mailer:   d.Mailer,
		prices:   d.Prices,
		plans:    plans,
		metrics:  d.Metrics,
		logger:   d.Logger.With("component", "service.billing"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *BillingService) priceFor(plan string) (string, error) {
	price, ok := s.prices[strings.ToLower(strings.TrimSpace(plan))]
	if !ok {
		return "", ErrInvalidPlan
	}
	return price, nil
}

// GetSubscription returns the processor's view of the user's subscription.
func (s *BillingService) GetSubscription(ctx context.Context, user *model.User) (*payment.Subscription, error) {
	if user.Subscription.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}
	return s.payments.GetSubscription(ctx, user.Subscription.SubscriptionID)
}

// CreateSubscription subscribes the user to plan using paymentMethodID.
func (s *BillingService) CreateSubscription(ctx context.Context, user *model.User, plan, paymentMethodID string) (*payment.Subscription, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	price, err := s.priceFor(plan)
	if err != nil {
		return nil, err
	}
	if paymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}
	if user.Subscription.SubscriptionID != "" && user.Subscription.Status != model.SubscriptionCanceled {
		return nil, ErrSubscriptionExists
	}

	if err := s.ensureCustomer(ctx, user); err != nil {
		return nil, err
	}

	sub, err := s.payments.CreateSubscription(ctx, user.Subscription.CustomerID, price, paymentMethodID)
	if err != nil {
		return nil, err
	}

	s.applySubscription(user, plan, sub)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	start := s.now().Format("January 2, 2006")
	if err := s.mailer.SendSubscriptionConfirmation(ctx, user.Email, plan, start); err != nil {
		s.logger.Warn("subscription confirmation not sent", "user_id", user.ID, "error", err)
	}

	s.logger.Info("subscription_created", "user_id", user.ID, "plan", plan, "subscription_id", sub.ID)
	return sub, nil
}

// UpdateSubscription moves the user's subscription to plan.
func (s *BillingService) UpdateSubscription(ctx context.Context, user *model.User, plan string) (*payment.Subscription, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	price, err := s.priceFor(plan)
	if err != nil {
		return nil, err
	}
	if user.Subscription.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	sub, err := s.payments.UpdateSubscription(ctx, user.Subscription.SubscriptionID, price)
	if err != nil {
		return nil, err
	}

	s.applySubscription(user, plan, sub)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return sub, nil
}

// CancelSubscription cancels immediately and returns the user to the free tier.
func (s *BillingService) CancelSubscription(ctx context.Context, user *model.User) error {
	if user.Subscription.SubscriptionID == "" {
		return ErrNoSubscription
	}
	if err := s.payments.CancelSubscription(ctx, user.Subscription.SubscriptionID); err != nil {
		return err
	}
	s.downgrade(user)
	return s.users.UpdateUser(ctx, user)
}

// ListPaymentMethods returns the user's stored cards.
func (s *BillingService) ListPaymentMethods(ctx context.Context, user *model.User) ([]payment.PaymentMethod, error) {
	if user.Subscription.CustomerID == "" {
		return []payment.PaymentMethod{}, nil
	}
	return s.payments.ListPaymentMethods(ctx, user.Subscription.CustomerID)
}

// AddPaymentMethod attaches a card to the user's customer record.
func (s *BillingService) AddPaymentMethod(ctx context.Context, user *model.User, paymentMethodID string) error {
	if paymentMethodID == "" {
		return ErrPaymentMethodRequired
	}
	if err := s.ensureCustomer(ctx, user); err != nil {
		return err
	}
	return s.payments.AttachPaymentMethod(ctx, user.Subscription.CustomerID, paymentMethodID)
}

// RemovePaymentMethod detaches one of the user's own cards.
func (s *BillingService) RemovePaymentMethod(ctx context.Context, user *model.User, paymentMethodID string) error {
	if user.Subscription.CustomerID == "" {
		return ErrPaymentMethodNotFound
	}
	methods, err := s.payments.ListPaymentMethods(ctx, user.Subscription.CustomerID)
	if err != nil {
		return err
	}
	for _, m := range methods {
		if m.ID == paymentMethodID {
			return s.payments.DetachPaymentMethod(ctx, paymentMethodID)
		}
	}
	return ErrPaymentMethodNotFound
}

// CreatePaymentIntent returns the client secret for a one-off charge.
func (s *BillingService) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return s.payments.CreatePaymentIntent(ctx, amount, currency)
}

// GetInvoice returns one invoice.
func (s *BillingService) GetInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	if invoiceID == "" {
		return nil, ErrInvoiceIDRequired
	}
	return s.payments.GetInvoice(ctx, invoiceID)
}

// HandleWebhook verifies and applies a processor webhook. Each event ID is
// applied at most once; a failed event is forgotten so redelivery retries it.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	fresh, err := s.events.MarkPaymentEventProcessed(ctx, event.ID, event.Type)
	if err != nil {
		s.metrics.IncPaymentWebhook(webhookFailed)
		return err
	}
	if !fresh {
		s.metrics.IncPaymentWebhook(webhookDuplicate)
		s.logger.Info("webhook_duplicate", "event_id", event.ID, "type", event.Type)
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		s.metrics.IncPaymentWebhook(webhookFailed)
		if ferr := s.events.ForgetPaymentEvent(ctx, event.ID); ferr != nil {
			s.logger.Error("failed to forget payment event", "event_id", event.ID, "error", ferr)
		}
		return err
	}

	s.metrics.IncPaymentWebhook(webhookProcessed)
	return nil
}

func (s *BillingService) dispatch(ctx context.Context, event *payment.Event) error {
	log := s.logger.With("event_id", event.ID, "type", event.Type)

	switch event.Type {
	case payment.EventPaymentSucceeded:
		log.Info("payment_succeeded", "payment_intent", event.ObjectID)
	case payment.EventPaymentFailed:
		log.Warn("payment_failed", "payment_intent", event.ObjectID)
	case payment.EventInvoicePaid:
		log.Info("invoice_paid", "invoice_id", event.ObjectID, "customer_id", event.CustomerID)
	case payment.EventInvoicePaymentFailed:
		return s.withCustomer(ctx, event.CustomerID, func(user *model.User) bool {
			if user.Subscription.SubscriptionID == "" {
				return false
			}
			user.Subscription.Status = model.SubscriptionPastDue
			return true
		})
	case payment.EventSubscriptionCreated, payment.EventSubscriptionUpdated:
		if event.Subscription == nil {
			return fmt.Errorf("event %s carries no subscription", event.ID)
		}
		return s.withCustomer(ctx, event.Subscription.CustomerID, func(user *model.User) bool {
			plan := s.plans[event.Subscription.PriceID]
			if plan == "" {
				plan = user.Subscription.Plan
			}
			s.applySubscription(user, plan, event.Subscription)
			return true
		})
	case payment.EventSubscriptionDeleted:
		customer := event.CustomerID
		if event.Subscription != nil && event.Subscription.CustomerID != "" {
			customer = event.Subscription.CustomerID
		}
		return s.withCustomer(ctx, customer, func(user *model.User) bool {
			s.downgrade(user)
			return true
		})
	default:
		log.Debug("webhook_ignored")
	}
	return nil
}

// withCustomer loads the user behind a processor customer and saves it when
// fn reports a change. Events for unknown customers are skipped.
func (s *BillingService) withCustomer(ctx context.Context, customerID string, fn func(*model.User) bool) error {
	if customerID == "" {
		return nil
	}
	user, err := s.users.GetUserByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("webhook for unknown customer", "customer_id", customerID)
			return nil
		}
		return fmt.Errorf("%w: %w", errWebhookUserUnavailable, err)
	}
	if !fn(user) {
		return nil
	}
	user.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, user)
}

// applySubscription mirrors sub onto the user. Tier follows plan while the
// subscription is live; a canceled subscription drops the user to free.
func (s *BillingService) applySubscription(user *model.User, plan string, sub *payment.Subscription) {
	user.Subscription.SubscriptionID = sub.ID
	user.Subscription.Status = sub.Status
	user.Subscription.CurrentPeriodEnd = sub.CurrentPeriodEnd
	if sub.CustomerID != "" {
		user.Subscription.CustomerID = sub.CustomerID
	}
	switch sub.Status {
	case model.SubscriptionActive, model.SubscriptionTrialing:
		user.Subscription.Plan = plan
		user.Tier = model.TierForPlan(plan)
	case model.SubscriptionCanceled:
		s.downgrade(user)
	}
	user.UpdatedAt = s.now()
}

func (s *BillingService) downgrade(user *model.User) {
	user.Subscription.Plan = model.TierFree
	user.Subscription.Status = model.SubscriptionCanceled
	user.Subscription.SubscriptionID = ""
	user.Subscription.CurrentPeriodEnd = nil
	user.Tier = model.TierFree
	user.UpdatedAt = s.now()
}

// ensureCustomer creates the processor customer on first use.
func (s *BillingService) ensureCustomer(ctx context.Context, user *model.User) error {
	if user.Subscription.CustomerID != "" {
		return nil
	}
	id, err := s.payments.CreateCustomer(ctx, user.Email, user.DisplayName())
	if err != nil {
		return err
	}
	if id == "" {
		return payment.ErrNotConfigured
	}
	user.Subscription.CustomerID = id
	user.UpdatedAt = s.now()
	return s.users.UpdateUser(ctx, user)
}

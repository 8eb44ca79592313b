package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/presskit/presskit/internal/apperror"
)

// StripeConfig holds processor credentials.
type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	PaymentMethodTypes []string
}

// Stripe implements Processor on the Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	methodTypes   []string
	logger        *slog.Logger
}

var _ Processor = (*Stripe)(nil)

// NewStripe creates a Stripe-backed processor.
func NewStripe(cfg StripeConfig, logger *slog.Logger) *Stripe {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	types := cfg.PaymentMethodTypes
	if len(types) == 0 {
		types = []string{"card"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stripe{api: api, webhookSecret: cfg.WebhookSecret, methodTypes: types, logger: logger}
}

// fail logs the provider error and returns the fixed client message.
func (s *Stripe) fail(op, message string, err error) error {
	s.logger.Error("payment_provider_error", "op", op, "error", err)
	return apperror.External(message, err)
}

// CreateCustomer registers a customer and returns its ID.
func (s *Stripe) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", s.fail("create_customer", MsgCreateCustomer, err)
	}
	return c.ID, nil
}

// CreateSubscription attaches the payment method, makes it the default and subscribes to priceID.
func (s *Stripe) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*Subscription, error) {
	attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	attach.Context = ctx
	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, attach); err != nil {
		return nil, s.fail("create_subscription", MsgCreateSubscription, err)
	}

	update := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	update.Context = ctx
	if _, err := s.api.Customers.Update(customerID, update); err != nil {
		return nil, s.fail("create_subscription", MsgCreateSubscription, err)
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items:    []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return nil, s.fail("create_subscription", MsgCreateSubscription, err)
	}
	return convertSubscription(sub), nil
}

// UpdateSubscription swaps the subscription's price with prorations.
func (s *Stripe) UpdateSubscription(ctx context.Context, subscriptionID, priceID string) (*Subscription, error) {
	get := &stripe.SubscriptionParams{}
	get.Context = ctx
	current, err := s.api.Subscriptions.Get(subscriptionID, get)
	if err != nil {
		return nil, s.fail("update_subscription", MsgUpdateSubscription, err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, s.fail("update_subscription", MsgUpdateSubscription, fmt.Errorf("subscription %s has no items", subscriptionID))
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(current.Items.Data[0].ID),
			Price: stripe.String(priceID),
		}},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, s.fail("update_subscription", MsgUpdateSubscription, err)
	}
	return convertSubscription(sub), nil
}

// CancelSubscription cancels immediately.
func (s *Stripe) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return s.fail("cancel_subscription", MsgCancelSubscription, err)
	}
	return nil
}

// GetSubscription retrieves subscription details.
func (s *Stripe) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, s.fail("get_subscription", MsgGetSubscription, err)
	}
	return convertSubscription(sub), nil
}

// ListPaymentMethods lists the customer's cards.
func (s *Stripe) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	methods := make([]PaymentMethod, 0)
	iter := s.api.PaymentMethods.List(params)
	for iter.Next() {
		methods = append(methods, convertPaymentMethod(iter.PaymentMethod()))
	}
	if err := iter.Err(); err != nil {
		return nil, s.fail("list_payment_methods", MsgGetPaymentMethods, err)
	}
	return methods, nil
}

// AttachPaymentMethod adds a payment method to the customer.
func (s *Stripe) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return s.fail("attach_payment_method", MsgAddPaymentMethod, err)
	}
	return nil
}

// DetachPaymentMethod removes a payment method from its customer.
func (s *Stripe) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := s.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return s.fail("detach_payment_method", MsgRemovePaymentMethod, err)
	}
	return nil
}

// CreatePaymentIntent creates a one-off payment and returns its client secret.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice(s.methodTypes),
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", s.fail("create_payment_intent", MsgCreatePaymentIntent, err)
	}
	return pi.ClientSecret, nil
}

// GetInvoice retrieves invoice details.
func (s *Stripe) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	inv, err := s.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, s.fail("get_invoice", MsgGetInvoice, err)
	}
	return convertInvoice(inv), nil
}

// ParseWebhook verifies the signature header and decodes the event.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperror.Wrap(http.StatusBadRequest, MsgWebhookSignature, err)
	}
	return convertEvent(ev)
}

func convertEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	var obj struct {
		ID       string `json:"id"`
		Object   string `json:"object"`
		Customer any    `json:"customer"`
	}
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return nil, apperror.Wrap(http.StatusBadRequest, "Invalid webhook payload", err)
	}
	out.ObjectID = obj.ID
	out.CustomerID = customerID(obj.Customer)

	if obj.Object == "subscription" {
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, apperror.Wrap(http.StatusBadRequest, "Invalid webhook payload", err)
		}
		out.Subscription = convertSubscription(&sub)
		if out.Subscription.CustomerID == "" {
			out.Subscription.CustomerID = out.CustomerID
		}
	}
	return out, nil
}

// customerID reads a customer field that may be an ID or an expanded object.
func customerID(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]any:
		if id, ok := c["id"].(string); ok {
			return id
		}
	}
	return ""
}

func convertSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.PriceID = price.ID
		out.PriceName = price.Nickname
		out.Amount = price.UnitAmount
		out.Currency = string(price.Currency)
	}
	return out
}

func convertPaymentMethod(pm *stripe.PaymentMethod) PaymentMethod {
	out := PaymentMethod{ID: pm.ID, Type: string(pm.Type)}
	if pm.Card != nil {
		out.Last4 = pm.Card.Last4
		out.ExpMonth = pm.Card.ExpMonth
		out.ExpYear = pm.Card.ExpYear
		out.Brand = string(pm.Card.Brand)
	}
	return out
}

func convertInvoice(inv *stripe.Invoice) *Invoice {
	out := &Invoice{
		ID:               inv.ID,
		Number:           inv.Number,
		Amount:           inv.AmountDue,
		Currency:         string(inv.Currency),
		Status:           string(inv.Status),
		HostedInvoiceURL: inv.HostedInvoiceURL,
	}
	if inv.Status == stripe.InvoiceStatusPaid && inv.StatusTransitions != nil {
		out.PaidAt = unixTime(inv.StatusTransitions.PaidAt)
	}
	return out
}

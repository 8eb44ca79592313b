package dto

// SubscriptionRequest selects a plan, with a card for new subscriptions.
type SubscriptionRequest struct {
	Plan            string `json:"plan"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

// PaymentMethodRequest names a processor payment method.
type PaymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// PaymentIntentRequest represents a one-off charge in minor units.
type PaymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// PaymentIntentResponse returns the client secret for confirming a charge.
type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

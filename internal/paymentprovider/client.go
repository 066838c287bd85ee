// Package paymentprovider реализует клиент Stripe: создание сессий Checkout
// и проверка подписи вебхуков.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const stripeAPIBase = "https://api.stripe.com"

// Client — клиент Stripe API.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Stripe.
func NewClient(secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     stripeAPIBase,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// NewClientWithURL создаёт клиент с переопределённым адресом API (для тестов).
func NewClientWithURL(secretKey, apiURL string) *Client {
	c := NewClient(secretKey)
	c.apiURL = strings.TrimSuffix(apiURL, "/")
	return c
}

// CreateCheckoutSession создаёт сессию Stripe Checkout для покупки плана.
// Username и идентификатор плана кладутся в metadata, чтобы вебхук
// checkout.session.completed смог применить покупку к нужному пользователю.
func (c *Client) CreateCheckoutSession(ctx context.Context, username, planID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("client_reference_id", username)
	params.Set("success_url", successURL)
	params.Set("cancel_url", cancelURL)
	params.Set("line_items[0][price]", priceID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("metadata[username]", username)
	params.Set("metadata[plan_id]", planID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/v1/checkout/sessions", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var stripeErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&stripeErr); decodeErr == nil && stripeErr.Error.Message != "" {
			return nil, fmt.Errorf("%s: stripe error (%d): %s", op, resp.StatusCode, stripeErr.Error.Message)
		}
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session, nil
}

// VerifyWebhook проверяет HMAC-подпись вебхука Stripe и разбирает событие.
func VerifyWebhook(payload []byte, signatureHeader, secret string) (*Event, error) {
	const op = "paymentprovider.VerifyWebhook"

	if err := webhook.ValidatePayload(payload, signatureHeader, secret); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &event, nil
}

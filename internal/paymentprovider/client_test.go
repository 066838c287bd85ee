package paymentprovider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestCreateCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "testuser", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "testuser", r.PostForm.Get("metadata[username]"))
		assert.Equal(t, "premium", r.PostForm.Get("metadata[plan_id]"))
		assert.Equal(t, "price_123", r.PostForm.Get("line_items[0][price]"))

		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/pay/cs_test_1"}`))
	}))
	defer server.Close()

	client := NewClientWithURL("sk_test_123", server.URL)
	session, err := client.CreateCheckoutSession(context.Background(),
		"testuser", "premium", "price_123", "https://app/success", "https://app/cancel")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", session.URL)
}

func TestCreateCheckoutSession_StripeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	}))
	defer server.Close()

	client := NewClientWithURL("sk_test_123", server.URL)
	_, err := client.CreateCheckoutSession(context.Background(),
		"testuser", "premium", "price_missing", "https://app/success", "https://app/cancel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such price")
}

func signedHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))
}

func TestVerifyWebhook(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed",` +
		`"data":{"object":{"id":"cs_1","client_reference_id":"testuser",` +
		`"metadata":{"username":"testuser","plan_id":"premium"},` +
		`"customer_details":{"email":"test@example.com"}}}}`)

	t.Run("валидная подпись", func(t *testing.T) {
		event, err := VerifyWebhook(payload, signedHeader(t, payload, secret), secret)
		require.NoError(t, err)
		assert.Equal(t, "checkout.session.completed", event.Type)

		var session CheckoutSessionCompleted
		require.NoError(t, json.Unmarshal(event.Data.Object, &session))
		assert.Equal(t, "testuser", session.Metadata["username"])
		assert.Equal(t, "premium", session.Metadata["plan_id"])
		assert.Equal(t, "test@example.com", session.CustomerDetails.Email)
	})

	t.Run("чужой секрет", func(t *testing.T) {
		_, err := VerifyWebhook(payload, signedHeader(t, payload, "whsec_other"), secret)
		assert.Error(t, err)
	})

	t.Run("подменённое тело", func(t *testing.T) {
		header := signedHeader(t, payload, secret)
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = 'x'
		_, err := VerifyWebhook(tampered, header, secret)
		assert.Error(t, err)
	})
}

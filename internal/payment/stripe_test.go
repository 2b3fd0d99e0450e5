package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainbridge/internal/booking"
)

func stripeServer(t *testing.T, status int, body string, seen *http.Request) *StripeCollector {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if seen != nil {
			*seen = *r
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewStripeCollector(Config{SecretKey: "sk_test_123", APIURL: srv.URL}, nil)
}

func request() booking.PaymentRequest {
	return booking.PaymentRequest{
		ClientSecret:    "pi_99_secret_abc",
		PaymentIntentID: "pi_99",
		Amount:          10,
		Currency:        "usd",
		PaymentMethod:   "pm_card_visa",
	}
}

func TestCollectPayment_Succeeded(t *testing.T) {
	var seen http.Request
	c := stripeServer(t, http.StatusOK, `{"id":"pi_99","object":"payment_intent","status":"succeeded"}`, &seen)

	id, err := c.CollectPayment(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "pi_99", id)

	assert.Equal(t, "/v1/payment_intents/pi_99/confirm", seen.URL.Path)
	assert.Equal(t, "pm_card_visa", seen.PostForm.Get("payment_method"))
	assert.Equal(t, "Bearer sk_test_123", seen.Header.Get("Authorization"))
}

func TestCollectPayment_AcceptedStatuses(t *testing.T) {
	for _, status := range []string{"processing", "requires_capture"} {
		c := stripeServer(t, http.StatusOK, `{"id":"pi_99","object":"payment_intent","status":"`+status+`"}`, nil)
		id, err := c.CollectPayment(context.Background(), request())
		require.NoError(t, err, status)
		assert.Equal(t, "pi_99", id)
	}
}

func TestCollectPayment_Incomplete(t *testing.T) {
	c := stripeServer(t, http.StatusOK, `{"id":"pi_99","object":"payment_intent","status":"requires_action"}`, nil)

	_, err := c.CollectPayment(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentIncomplete)
	assert.Contains(t, err.Error(), "requires_action")
}

func TestCollectPayment_CardDeclined(t *testing.T) {
	c := stripeServer(t, http.StatusPaymentRequired,
		`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`, nil)

	_, err := c.CollectPayment(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, "Your card was declined.", err.Error())

	var payErr *Error
	assert.True(t, errors.As(err, &payErr))
}

func TestCollectPayment_APIError(t *testing.T) {
	c := stripeServer(t, http.StatusInternalServerError, `{"error":{"type":"api_error","message":"boom"}}`, nil)

	_, err := c.CollectPayment(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, declinedMessage, err.Error())
}

func TestCollectPayment_Validation(t *testing.T) {
	c := NewStripeCollector(Config{SecretKey: "sk_test_123", APIURL: "http://127.0.0.1:1"}, nil)

	req := request()
	req.ClientSecret = "pi_other_secret_abc"
	_, err := c.CollectPayment(context.Background(), req)
	assert.ErrorIs(t, err, ErrSecretMismatch)

	req = request()
	req.PaymentMethod = ""
	_, err = c.CollectPayment(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingMethod)
}

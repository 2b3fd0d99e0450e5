// Package payment collects card payments for booking intents through Stripe.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"brainbridge/internal/booking"
)

var (
	ErrSecretMismatch    = errors.New("client secret does not belong to the payment intent")
	ErrMissingMethod     = errors.New("a payment method is required")
	ErrPaymentIncomplete = errors.New("payment was not completed")
)

const (
	declinedMessage       = "Your payment could not be processed. Please check your card details and try again."
	incompleteMessageTmpl = "Your payment was not completed (status %s). Please try again."
)

// Config configures the Stripe collector.
type Config struct {
	SecretKey string
	// APIURL overrides the Stripe API endpoint.
	APIURL  string
	Timeout time.Duration
}

// StripeCollector confirms payment intents with the card the user supplied.
type StripeCollector struct {
	api    *client.API
	logger *zerolog.Logger
}

var _ booking.PaymentCollector = (*StripeCollector)(nil)

// NewStripeCollector builds a collector from cfg.
func NewStripeCollector(cfg Config, logger *zerolog.Logger) *StripeCollector {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}
	b := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeCollector{
		api:    client.New(cfg.SecretKey, &stripe.Backends{API: b, Connect: b, Uploads: b}),
		logger: logger,
	}
}

// CollectPayment confirms req's payment intent with req.PaymentMethod and
// returns the intent id once Stripe has accepted the charge.
func (c *StripeCollector) CollectPayment(ctx context.Context, req booking.PaymentRequest) (string, error) {
	if !strings.HasPrefix(req.ClientSecret, req.PaymentIntentID+"_secret_") {
		return "", ErrSecretMismatch
	}
	if req.PaymentMethod == "" {
		return "", ErrMissingMethod
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(req.PaymentMethod),
	}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(req.PaymentIntentID, params)
	if err != nil {
		c.logger.Warn().Err(err).Str("payment_intent_id", req.PaymentIntentID).Msg("stripe confirm failed")
		return "", collectError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		c.logger.Info().
			Str("payment_intent_id", pi.ID).
			Str("status", string(pi.Status)).
			Msg("payment collected")
		return pi.ID, nil
	default:
		return "", &Error{
			Message: fmt.Sprintf(incompleteMessageTmpl, pi.Status),
			Err:     fmt.Errorf("%w: status %s", ErrPaymentIncomplete, pi.Status),
		}
	}
}

// Error is a payment failure with a message fit to show the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func collectError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard && stripeErr.Msg != "" {
		return &Error{Message: stripeErr.Msg, Err: err}
	}
	return &Error{Message: declinedMessage, Err: err}
}

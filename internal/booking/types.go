package booking

import (
	"context"
	"errors"
	"strconv"

	"brainbridge/internal/model"
)

var (
	ErrInvalidResource = errors.New("resource id must be positive")
	ErrNoCollector     = errors.New("payment is required but no payment collector is configured")
)

// IntentRequest asks the backend to price a booking.
type IntentRequest struct {
	ResourceID int64
	// ScheduledDate is any value NormalizeDate accepts. Ignored for undated resources.
	ScheduledDate any
	// PointsToUse is omitted from the payload when zero.
	PointsToUse int
	// NewPaymentAmount overrides the computed charge when set.
	NewPaymentAmount *float64
}

// Intent is the backend's answer to an intent request.
// When RequiresPayment is true, ClientSecret and PaymentIntentID are always set.
type Intent struct {
	RequiresPayment  bool          `json:"requires_payment"`
	ClientSecret     string        `json:"client_secret,omitempty"`
	PaymentIntentID  string        `json:"payment_intent_id,omitempty"`
	ReferenceID      string        `json:"reference_id,omitempty"`
	Amount           model.Amount  `json:"amount,omitempty"`
	Currency         string        `json:"currency,omitempty"`
	PointsToUse      model.Count   `json:"points_to_use,omitempty"`
	NewPaymentAmount *model.Amount `json:"new_payment_amount,omitempty"`
	Message          string        `json:"message,omitempty"`

	Raw map[string]any `json:"-"`
}

// ConfirmationID is the id to thread into the confirm call: the payment intent
// id, or the backend-supplied reference on the zero-payment path.
func (i *Intent) ConfirmationID() string {
	if i.PaymentIntentID != "" {
		return i.PaymentIntentID
	}
	return i.ReferenceID
}

// ConfirmRequest finalizes a reservation.
type ConfirmRequest struct {
	ResourceID    int64
	ScheduledDate any
	// PaymentIntentID must be the exact value returned with the intent.
	PaymentIntentID  string
	PointsToUse      int
	NewPaymentAmount *float64
}

// Confirmation is a successful confirm response.
type Confirmation struct {
	Success   bool
	Message   string
	BookingID string
	Raw       map[string]any
}

// PaymentRequest is handed to the payment collector.
type PaymentRequest struct {
	ClientSecret    string
	PaymentIntentID string
	Amount          float64
	Currency        string
	PaymentMethod   string
}

// Checkout carries what the user entered for the payment step.
type Checkout struct {
	PaymentMethod string
}

// PaymentCollector collects card details bound to a client secret and confirms
// the charge with the payment processor. It returns the payment intent id.
type PaymentCollector interface {
	CollectPayment(ctx context.Context, req PaymentRequest) (string, error)
}

// CollectorFunc adapts a function to PaymentCollector.
type CollectorFunc func(ctx context.Context, req PaymentRequest) (string, error)

func (f CollectorFunc) CollectPayment(ctx context.Context, req PaymentRequest) (string, error) {
	return f(ctx, req)
}

// Invalidator drops cached listings.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// switchable is implemented by invalidators that may be turned off.
type switchable interface {
	Enabled() bool
}

// AttemptRecorder persists attempts once payment is collected and again when they finish.
type AttemptRecorder interface {
	Record(ctx context.Context, a *Attempt) error
}

// SupportNotifier is told about payments captured without a confirmed booking.
type SupportNotifier interface {
	NotifyUnconfirmedPayment(ctx context.Context, a *Attempt) error
}

func payload(r model.Resource, id int64, date string, points int, amount *float64, paymentIntentID string) map[string]any {
	body := map[string]any{r.IDField: id}
	if r.Dated {
		body["scheduled_date"] = date
	}
	if points > 0 {
		body["points_to_use"] = points
	}
	if amount != nil {
		body["new_payment_amount"] = *amount
	}
	if paymentIntentID != "" {
		body["payment_intent_id"] = paymentIntentID
	}
	return body
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

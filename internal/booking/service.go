package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/metrics"
	"brainbridge/internal/model"
)

// Service runs booking handshakes against the backend.
// It holds no per-attempt state, so concurrent attempts are independent.
type Service struct {
	api       *apiclient.Client
	collector PaymentCollector
	cache     Invalidator
	recorder  AttemptRecorder
	notifier  SupportNotifier
	metrics   *metrics.Metrics
	location  *time.Location
	fsm       *FSM
	logger    *zerolog.Logger
}

// NewService constructs a booking service. collector and cache may be nil.
func NewService(api *apiclient.Client, collector PaymentCollector, cache Invalidator, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		api:       api,
		collector: collector,
		cache:     cache,
		location:  time.Local,
		fsm:       NewFSM(),
		logger:    logger,
	}
}

// UseRecorder persists attempts as they collect payment and finish.
func (s *Service) UseRecorder(r AttemptRecorder) {
	s.recorder = r
}

// UseNotifier alerts support about captured but unconfirmed payments.
func (s *Service) UseNotifier(n SupportNotifier) {
	s.notifier = n
}

// UseMetrics enables booking metrics.
func (s *Service) UseMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// UseLocation sets the zone whose calendar fields dates are normalized in.
func (s *Service) UseLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// RequestIntent prices a booking and reports whether payment must be collected.
// It has no side effects on the backend.
func (s *Service) RequestIntent(ctx context.Context, creds *apiclient.Credentials, r model.Resource, req IntentRequest) (*Intent, error) {
	date, err := s.scheduledDate(r, req.ResourceID, req.ScheduledDate)
	if err != nil {
		return nil, err
	}
	return s.requestIntent(ctx, creds, r, req, date, "")
}

func (s *Service) requestIntent(ctx context.Context, creds *apiclient.Credentials, r model.Resource, req IntentRequest, date, requestID string) (*Intent, error) {
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        r.IntentPath(),
		Body:        payload(r, req.ResourceID, date, req.PointsToUse, req.NewPaymentAmount, ""),
		Credentials: creds,
		RequestID:   requestID,
	})
	if err != nil {
		return nil, err
	}

	intent, err := decodeIntent(resp)
	if err != nil {
		return nil, err
	}

	if intent.RequiresPayment && (intent.ClientSecret == "" || intent.PaymentIntentID == "") {
		return nil, apiclient.NewError(apiclient.KindProtocolViolation, resp.Status,
			"The server asked for payment but did not provide payment details. Please try again.",
			fmt.Errorf("requires_payment without client_secret/payment_intent_id"))
	}
	return intent, nil
}

// decodeIntent reads the intent from the body, or from body.data when the
// backend wraps it. An intent without requires_payment is rejected.
func decodeIntent(resp *apiclient.Response) (*Intent, error) {
	src := resp.Body
	if _, ok := src["requires_payment"]; !ok {
		data, _ := src["data"].(map[string]any)
		if _, ok := data["requires_payment"]; !ok {
			return nil, apiclient.NewError(apiclient.KindProtocolViolation, resp.Status,
				"The server did not say whether payment is required. Please try again.",
				fmt.Errorf("intent response without requires_payment"))
		}
		src = data
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return nil, apiclient.NewError(apiclient.KindMalformed, resp.Status, "The server returned an invalid response.", err)
	}
	var intent Intent
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&intent); err != nil {
		return nil, apiclient.NewError(apiclient.KindMalformed, resp.Status, "The server returned an invalid response.", err)
	}
	intent.Raw = resp.Body
	return &intent, nil
}

// Confirm finalizes a reservation. On success the resource's listing and item
// cache entries are invalidated together.
func (s *Service) Confirm(ctx context.Context, creds *apiclient.Credentials, r model.Resource, req ConfirmRequest) (*Confirmation, error) {
	date, err := s.scheduledDate(r, req.ResourceID, req.ScheduledDate)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, creds, r, req, date, "")
}

func (s *Service) confirm(ctx context.Context, creds *apiclient.Credentials, r model.Resource, req ConfirmRequest, date, requestID string) (*Confirmation, error) {
	resp, err := s.api.Do(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        r.ConfirmPath(),
		Body:        payload(r, req.ResourceID, date, req.PointsToUse, req.NewPaymentAmount, req.PaymentIntentID),
		Credentials: creds,
		RequestID:   requestID,
	})
	if err != nil {
		return nil, err
	}

	conf := &Confirmation{
		Success: true,
		Raw:     resp.Body,
	}
	conf.Message, _ = resp.Body["message"].(string)
	conf.BookingID = idString(resp.Body["booking_id"])
	if data, ok := resp.Body["data"].(map[string]any); ok && conf.BookingID == "" {
		conf.BookingID = idString(data["booking_id"])
		if conf.BookingID == "" {
			conf.BookingID = idString(data["id"])
		}
	}

	s.invalidate(ctx, r, req.ResourceID)
	return conf, nil
}

func (s *Service) invalidate(ctx context.Context, r model.Resource, id int64) {
	if s.cache == nil {
		return
	}
	if sw, ok := s.cache.(switchable); ok && !sw.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, r.ListCacheKey(), r.ItemCacheKey(id)); err != nil {
		// The reservation already exists; a stale listing is not an error.
		s.loggerFor(ctx).Warn().Err(err).Str("resource", r.Name).Msg("listing cache invalidation failed")
		return
	}
	s.metrics.IncCacheInvalidation(r.Name)
}

// Book runs the whole handshake: intent, payment collection when required, confirm.
// The returned attempt is never nil; err is a human-readable *apiclient.Error or a
// validation error.
func (s *Service) Book(ctx context.Context, creds *apiclient.Credentials, r model.Resource, req IntentRequest, checkout Checkout) (*Attempt, error) {
	a := NewAttempt(r, req.ResourceID)
	a.PointsToUse = req.PointsToUse

	l := s.logger.With().
		Str("attempt_id", a.ID).
		Str("resource", r.Name).
		Int64("resource_id", req.ResourceID).
		Logger()
	ctx = l.WithContext(ctx)

	date, err := s.scheduledDate(r, req.ResourceID, req.ScheduledDate)
	if err != nil {
		return a, s.fail(ctx, a, err)
	}
	a.ScheduledDate = date

	if err := s.fsm.Transition(a, StateIntentRequested); err != nil {
		return a, err
	}
	l.Info().Str("scheduled_date", date).Int("points_to_use", req.PointsToUse).Msg("requesting booking intent")

	intent, err := s.requestIntent(ctx, creds, r, req, date, a.ID)
	if err != nil {
		return a, s.fail(ctx, a, err)
	}
	a.RequiresPayment = intent.RequiresPayment
	a.Amount = float64(intent.Amount)
	a.Currency = intent.Currency
	a.PaymentIntentID = intent.ConfirmationID()

	if intent.RequiresPayment {
		if err := s.collect(ctx, a, intent, checkout); err != nil {
			return a, s.fail(ctx, a, err)
		}
		if err := s.fsm.Transition(a, StatePaymentCollected); err != nil {
			return a, err
		}
		a.PaymentCollected = true
		s.record(ctx, a)
		l.Info().Str("payment_intent_id", a.PaymentIntentID).Msg("payment collected")
	}

	points := req.PointsToUse
	if intent.PointsToUse > 0 {
		points = int(intent.PointsToUse)
	}
	amount := req.NewPaymentAmount
	if intent.NewPaymentAmount != nil {
		v := float64(*intent.NewPaymentAmount)
		amount = &v
	}

	conf, err := s.confirm(ctx, creds, r, ConfirmRequest{
		ResourceID:       req.ResourceID,
		PaymentIntentID:  a.PaymentIntentID,
		PointsToUse:      points,
		NewPaymentAmount: amount,
	}, date, a.ID)
	if err != nil {
		if a.PaymentCollected {
			err = s.unconfirmedPayment(ctx, a, err)
		}
		return a, s.fail(ctx, a, err)
	}

	a.BookingID = conf.BookingID
	a.Message = conf.Message
	if err := s.fsm.Transition(a, StateConfirmed); err != nil {
		return a, err
	}
	s.metrics.IncBookingAttempt(r.Name, string(StateConfirmed))
	s.record(ctx, a)
	l.Info().Str("booking_id", a.BookingID).Msg("booking confirmed")
	return a, nil
}

func (s *Service) collect(ctx context.Context, a *Attempt, intent *Intent, checkout Checkout) error {
	if s.collector == nil {
		return ErrNoCollector
	}
	id, err := s.collector.CollectPayment(ctx, PaymentRequest{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.PaymentIntentID,
		Amount:          float64(intent.Amount),
		Currency:        intent.Currency,
		PaymentMethod:   checkout.PaymentMethod,
	})
	if err != nil {
		return err
	}
	if id != intent.PaymentIntentID {
		// The charge belongs to another transaction attempt.
		return apiclient.NewError(apiclient.KindProtocolViolation, 0,
			"The payment could not be matched to this booking. Please contact support.",
			fmt.Errorf("collector returned payment intent %q, expected %q", id, intent.PaymentIntentID))
	}
	return nil
}

func (s *Service) unconfirmedPayment(ctx context.Context, a *Attempt, cause error) error {
	s.metrics.IncPaymentUnconfirmed()
	err := apiclient.NewError(apiclient.KindPaymentUnconfirmed, 0,
		fmt.Sprintf("Payment was captured but the booking could not be confirmed. Please contact support with reference %s.", a.PaymentIntentID),
		cause)

	l := s.loggerFor(ctx)
	l.Error().Err(cause).Str("payment_intent_id", a.PaymentIntentID).Msg("payment captured but booking not confirmed")
	if s.notifier != nil {
		a.ErrorKind = apiclient.KindPaymentUnconfirmed
		a.Message = cause.Error()
		if nerr := s.notifier.NotifyUnconfirmedPayment(ctx, a); nerr != nil {
			l.Error().Err(nerr).Msg("failed to notify support")
		}
	}
	return err
}

func (s *Service) fail(ctx context.Context, a *Attempt, err error) error {
	if a.State != StateFailed {
		if terr := s.fsm.Transition(a, StateFailed); terr != nil {
			s.loggerFor(ctx).Error().Err(terr).Msg("attempt state")
		}
	}
	a.ErrorKind = apiclient.KindOf(err)
	a.Message = err.Error()

	s.metrics.IncBookingAttempt(a.Resource, outcomeOf(a))
	s.record(ctx, a)
	s.loggerFor(ctx).Warn().Str("kind", string(a.ErrorKind)).Str("message", a.Message).Msg("booking attempt failed")
	return err
}

func (s *Service) record(ctx context.Context, a *Attempt) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, a); err != nil {
		s.loggerFor(ctx).Error().Err(err).Msg("failed to record booking attempt")
	}
}

func (s *Service) scheduledDate(r model.Resource, id int64, v any) (string, error) {
	if id <= 0 {
		return "", ErrInvalidResource
	}
	if !r.Dated {
		return "", nil
	}
	return NormalizeDate(v, s.location)
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

func outcomeOf(a *Attempt) string {
	if a.ErrorKind == "" {
		return "invalid"
	}
	return string(a.ErrorKind)
}

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/booking"
	"brainbridge/internal/model"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func unconfirmed() *booking.Attempt {
	a := booking.NewAttempt(model.InPersonSession, 4)
	a.ScheduledDate = "2024-06-01"
	a.PaymentIntentID = "pi_77"
	a.Amount = 25
	a.Currency = "usd"
	a.PaymentCollected = true
	a.ErrorKind = apiclient.KindPaymentUnconfirmed
	a.Message = "database unavailable"
	return a
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}
}

func toChat(id int64) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == id
	})
}

func TestNotifyUnconfirmedPayment_AllChats(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", toChat(100)).Return(nil).Once()
	sender.On("Send", toChat(200)).Return(nil).Once()

	n := NewTelegramNotifier(sender, []int64{100, 200}, fastRetry(), nil)
	require.NoError(t, n.NotifyUnconfirmedPayment(context.Background(), unconfirmed()))
	sender.AssertExpectations(t)
}

func TestNotifyUnconfirmedPayment_Retries(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", toChat(100)).Return(errors.New("connection reset")).Twice()
	sender.On("Send", toChat(100)).Return(nil).Once()

	n := NewTelegramNotifier(sender, []int64{100}, fastRetry(), nil)
	require.NoError(t, n.NotifyUnconfirmedPayment(context.Background(), unconfirmed()))
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestNotifyUnconfirmedPayment_BlockedChatIsNotRetried(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", toChat(100)).Return(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"})
	sender.On("Send", toChat(200)).Return(nil).Once()

	n := NewTelegramNotifier(sender, []int64{100, 200}, fastRetry(), nil)
	err := n.NotifyUnconfirmedPayment(context.Background(), unconfirmed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestNotifyUnconfirmedPayment_GivesUp(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", toChat(100)).Return(errors.New("timeout"))

	n := NewTelegramNotifier(sender, []int64{100}, fastRetry(), nil)
	err := n.NotifyUnconfirmedPayment(context.Background(), unconfirmed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestUnconfirmedPaymentText(t *testing.T) {
	a := unconfirmed()
	text := UnconfirmedPaymentText(a)

	assert.Contains(t, text, "pi_77")
	assert.Contains(t, text, "in_person_session #4")
	assert.Contains(t, text, "Date: 2024-06-01")
	assert.Contains(t, text, "Amount: 25.00 USD")
	assert.Contains(t, text, "database unavailable")
	assert.Contains(t, text, a.ID)
	assert.NotContains(t, text, "Points:")
}

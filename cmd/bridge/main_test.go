package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainbridge/internal/ledger"
)

type env struct {
	configPath string
	ledgerPath string
	redis      *miniredis.Miniredis
}

func newEnv(t *testing.T, handler http.HandlerFunc) *env {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)

	dir := t.TempDir()
	e := &env{
		configPath: filepath.Join(dir, "bridge.yaml"),
		ledgerPath: filepath.Join(dir, "data", "ledger.db"),
		redis:      mr,
	}
	cfg := fmt.Sprintf(`
api:
  base_url: %s
auth:
  token: tok
redis:
  address: %s
cache:
  ttl_seconds: 60
ledger:
  path: %s
logging:
  level: error
`, srv.URL, mr.Addr(), e.ledgerPath)
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o600))
	return e
}

func (e *env) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "bridge dev")
}

func TestBookCommand_ZeroPayment(t *testing.T) {
	var confirmBody string
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/slots/bookings/intent":
			_, _ = w.Write([]byte(`{"requires_payment":false,"reference_id":"ref_42"}`))
		case "/slots/bookings/confirm":
			b, _ := io.ReadAll(r.Body)
			confirmBody = string(b)
			_, _ = w.Write([]byte(`{"success":true,"message":"See you there","booking_id":555}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	require.NoError(t, e.redis.Set("brainbridge:listing:live_session", "[]"))

	out, err := e.run("book", "live", "--id", "42", "--date", "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "booked live_session #42 on 2024-06-01 (booking 555)")
	assert.Contains(t, out, "See you there")
	assert.Contains(t, confirmBody, `"payment_intent_id":"ref_42"`)
	assert.False(t, e.redis.Exists("brainbridge:listing:live_session"))

	l, err := ledger.Open(e.ledgerPath)
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "555", entries[0].BookingID)
}

func TestBookCommand_PaymentWithoutCollector(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"requires_payment":true,"client_secret":"pi_1_secret_x","payment_intent_id":"pi_1","amount":10}`))
	})

	out, err := e.run("book", "course", "--id", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payment collector")
	assert.Contains(t, out, "failed")
}

func TestBookCommand_Quote(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/in-person-slot/bookings/intent", r.URL.Path)
		_, _ = w.Write([]byte(`{"requires_payment":true,"client_secret":"pi_1_secret_x","payment_intent_id":"pi_1","amount":"12.5","currency":"usd"}`))
	})

	out, err := e.run("book", "in-person", "--id", "3", "--date", "2024-06-01", "--quote")
	require.NoError(t, err)
	assert.Contains(t, out, "payment required: 12.50 usd (intent pi_1)")
}

func TestBookCommand_UnknownResource(t *testing.T) {
	e := newEnv(t, func(http.ResponseWriter, *http.Request) {})
	_, err := e.run("book", "webinar", "--id", "1")
	assert.Error(t, err)
}

func TestListingsCommand(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"data":[{"id":1,"title":"Algebra","price":"15","points_price":150}]}}`))
	})

	out, err := e.run("listings", "course")
	require.NoError(t, err)
	assert.Contains(t, out, "Algebra")
	assert.Contains(t, out, "15.00")
	assert.True(t, e.redis.Exists("brainbridge:listing:course"))
}

func TestLedgerCommands(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/intent") {
			_, _ = w.Write([]byte(`{"requires_payment":false}`))
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"slot is full"}`))
	})

	_, err := e.run("book", "live", "--id", "9", "--date", "2024-06-01")
	require.EqualError(t, err, "slot is full")

	out, err := e.run("ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "live_session #9")
	assert.Contains(t, out, "rejected")

	out, err = e.run("ledger", "list", "--unreconciled")
	require.NoError(t, err)
	assert.NotContains(t, out, "live_session")

	_, err = e.run("ledger", "resolve", "missing-attempt")
	assert.True(t, errors.Is(err, ledger.ErrNotFound))

	xlsx := filepath.Join(t.TempDir(), "out.xlsx")
	out, err = e.run("ledger", "export", "--out", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, xlsx)
	_, err = os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestChatSend(t *testing.T) {
	e := newEnv(t, func(http.ResponseWriter, *http.Request) {})

	out, err := e.run("chat", "send", "--me", "9", "--to", "4", "--body", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "sent to chat.4.9")
}

func TestReadyHandler(t *testing.T) {
	ok := readyHandler(context.Background(), func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := readyHandler(context.Background(), func(context.Context) error { return errors.New("redis not ready") })
	rec = httptest.NewRecorder()
	failing(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis not ready")
}

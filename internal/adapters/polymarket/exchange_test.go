package polymarket

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

var testSecret = base64.URLEncoding.EncodeToString([]byte("super-secret"))

func testCreds() Credentials {
	return Credentials{
		Address:    "0xwallet",
		APIKey:     "api-key",
		Secret:     testSecret,
		Passphrase: "passphrase",
	}
}

func newTestExchange(t *testing.T, srv *httptest.Server) *Exchange {
	t.Helper()
	e, err := NewExchange(NewClient(srv.URL, ""), testCreds())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func orderRequest() ports.PlaceOrderRequest {
	return ports.PlaceOrderRequest{
		MarketID:       "mkt-1",
		Direction:      domain.DirectionYes,
		Stake:          50,
		Price:          0.40,
		IdempotencyKey: "mkt-1:cycle-1",
	}
}

func TestPlaceOrder_FullFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)

		var body clobOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mkt-1", body.MarketID)
		assert.Equal(t, "YES", body.Side)
		assert.Equal(t, "mkt-1:cycle-1", body.ClientID)

		json.NewEncoder(w).Encode(clobOrderResponse{
			OrderID:      "ord-123",
			Status:       "matched",
			FilledAmount: 50,
			FilledPrice:  0.41,
		})
	}))
	defer srv.Close()

	fill, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	require.NoError(t, err)
	assert.Equal(t, "ord-123", fill.OrderID)
	assert.Equal(t, domain.OrderStatusFilled, fill.Status)
	assert.Equal(t, 50.0, fill.FilledAmount)
	assert.Equal(t, 0.41, fill.FilledPrice)
}

func TestPlaceOrder_PartialFill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(clobOrderResponse{
			OrderID:      "ord-124",
			Status:       "matched",
			FilledAmount: 30,
			FilledPrice:  0.40,
		})
	}))
	defer srv.Close()

	fill, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPartial, fill.Status)
	assert.Equal(t, 30.0, fill.FilledAmount)
	assert.Equal(t, 50.0, fill.Requested)
}

func TestPlaceOrder_SignsWithL2Headers(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(clobOrderResponse{OrderID: "ord-1", Status: "matched", FilledAmount: 50})
	}))
	defer srv.Close()

	_, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	require.NoError(t, err)

	assert.Equal(t, "0xwallet", gotHeaders.Get("POLY_ADDRESS"))
	assert.Equal(t, "api-key", gotHeaders.Get("POLY_API_KEY"))
	assert.Equal(t, "passphrase", gotHeaders.Get("POLY_PASSPHRASE"))
	ts := gotHeaders.Get("POLY_TIMESTAMP")
	assert.NotEmpty(t, ts)

	// La firma debe ser HMAC-SHA256(ts + POST + /order + body) con el
	// secret decodificado de base64.
	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write([]byte(ts + "POST" + "/order" + string(gotBody)))
	want := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, gotHeaders.Get("POLY_SIGNATURE"))
}

func TestPlaceOrder_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	assert.ErrorIs(t, err, ports.ErrTransientExecution)
}

func TestPlaceOrder_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	assert.ErrorIs(t, err, ports.ErrTransientExecution)
}

func TestPlaceOrder_ClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid market"}`))
	}))
	defer srv.Close()

	_, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrTransientExecution)
}

func TestPlaceOrder_ExchangeErrorMsgIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(clobOrderResponse{ErrorMsg: "insufficient balance"})
	}))
	defer srv.Close()

	_, err := newTestExchange(t, srv).PlaceOrder(context.Background(), orderRequest())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrTransientExecution)
}

func TestPlaceOrder_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // el server ya no escucha

	e, err := NewExchange(NewClient(srv.URL, ""), testCreds())
	require.NoError(t, err)

	_, err = e.PlaceOrder(context.Background(), orderRequest())
	assert.ErrorIs(t, err, ports.ErrTransientExecution)
}

func TestNewExchange_RequiresCredentials(t *testing.T) {
	_, err := NewExchange(NewClient("", ""), Credentials{})
	assert.Error(t, err)
}

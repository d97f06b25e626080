package polymarket

// exchange.go — envío de órdenes al CLOB con auth L2.
//
// L2: cada request autenticado se firma con HMAC-SHA256 usando las API
// credentials (key/secret/passphrase) derivadas previamente para la wallet.
// Las credentials se cargan de fichero/entorno, nunca se derivan aquí.
//
// A diferencia del resto del client, PlaceOrder hace UNA única llamada HTTP:
// los reintentos por orden los gobierna el executor, que necesita contar
// submissions exactas. Aquí solo se clasifica el error: red/timeout/429/5xx
// → transitorio, 4xx → terminal.

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

const clobOrderPath = "/order"

// Credentials son las API credentials L2 del CLOB.
type Credentials struct {
	Address    string
	APIKey     string
	Secret     string
	Passphrase string
}

// Exchange implementa ports.Exchange contra el CLOB de Polymarket.
type Exchange struct {
	client *Client
	creds  Credentials
	now    func() time.Time
}

// NewExchange crea el adapter de órdenes con las credentials dadas.
func NewExchange(client *Client, creds Credentials) (*Exchange, error) {
	if creds.APIKey == "" || creds.Secret == "" || creds.Passphrase == "" {
		return nil, fmt.Errorf("polymarket.NewExchange: incomplete API credentials")
	}
	return &Exchange{client: client, creds: creds, now: time.Now}, nil
}

// PlaceOrder envía la orden al CLOB y espera el estado terminal del exchange.
func (e *Exchange) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (domain.Fill, error) {
	body := clobOrderRequest{
		MarketID:  req.MarketID,
		Side:      string(req.Direction),
		AmountUSD: req.Stake,
		Price:     req.Price,
		ClientID:  req.IdempotencyKey,
		OrderType: "FOK",
	}

	b, err := json.Marshal(body)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: marshal: %w", err)
	}

	headers, err := e.l2Headers(http.MethodPost, clobOrderPath, string(b))
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.client.clobBase+clobOrderPath, bytes.NewReader(b))
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if err := e.client.clobLimiter.Wait(ctx); err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: rate limiter: %w", err)
	}

	resp, err := e.client.http.Do(httpReq)
	if err != nil {
		// Errores de transporte (DNS, conexión, timeout) son recuperables.
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: %w: %w",
			ports.ErrTransientExecution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: status %d: %w",
			resp.StatusCode, ports.ErrTransientExecution)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: rejected %d: %s",
			resp.StatusCode, string(msg))
	}

	var orderResp clobOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: decode: %w", err)
	}
	if orderResp.ErrorMsg != "" {
		return domain.Fill{}, fmt.Errorf("polymarket.PlaceOrder: exchange error: %s", orderResp.ErrorMsg)
	}

	status := domain.OrderStatusFilled
	if orderResp.FilledAmount > 0 && orderResp.FilledAmount < req.Stake {
		status = domain.OrderStatusPartial
	}
	filled := orderResp.FilledAmount
	if filled <= 0 {
		filled = req.Stake
	}

	return domain.Fill{
		OrderID:      orderResp.OrderID,
		MarketID:     req.MarketID,
		Direction:    req.Direction,
		Requested:    req.Stake,
		FilledAmount: filled,
		FilledPrice:  orderResp.FilledPrice,
		Status:       status,
	}, nil
}

// l2Headers firma el request con HMAC-SHA256 sobre timestamp+method+path+body.
func (e *Exchange) l2Headers(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(e.now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(e.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    e.creds.Address,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    e.creds.APIKey,
		"POLY_PASSPHRASE": e.creds.Passphrase,
	}, nil
}

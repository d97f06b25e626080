package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// ErrTransientExecution marca fallos de ejecución recuperables (red, timeout,
// 5xx, rate limit). El executor los reintenta con backoff; cualquier otro
// error de PlaceOrder es terminal.
var ErrTransientExecution = errors.New("transient execution error")

// PlaceOrderRequest es la orden tal y como la ve el exchange.
type PlaceOrderRequest struct {
	MarketID       string
	Direction      domain.Direction
	Stake          float64 // USDC
	Price          float64 // precio límite aceptado
	IdempotencyKey string
}

// Exchange envía órdenes aprobadas al exchange real (o al simulador en
// dry-run: mismo contrato, fills sintéticos).
type Exchange interface {
	// PlaceOrder envía la orden y bloquea hasta un estado terminal del
	// exchange. Respeta el deadline del contexto.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Fill, error)
}

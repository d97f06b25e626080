// Package simulated contiene el exchange de dry-run: confirma cada orden
// con un fill sintético al precio pedido, sin tocar la red. El resto del
// pipeline (research, EV, risk, ledger, persistencia) corre exactamente
// igual que en vivo; solo se sustituye este adapter.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

// Exchange implementa ports.Exchange sin ejecutar nada real.
type Exchange struct {
	seq atomic.Int64
}

// NewExchange crea el exchange simulado.
func NewExchange() *Exchange {
	return &Exchange{}
}

// PlaceOrder devuelve un fill completo al precio de la orden.
func (e *Exchange) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fill{}, err
	}

	n := e.seq.Add(1)
	slog.Info("simulated fill",
		"market", req.MarketID,
		"side", req.Direction,
		"stake", fmt.Sprintf("$%.2f", req.Stake),
		"price", req.Price,
	)

	return domain.Fill{
		OrderID:      fmt.Sprintf("sim-%06d", n),
		MarketID:     req.MarketID,
		Direction:    req.Direction,
		Requested:    req.Stake,
		FilledAmount: req.Stake,
		FilledPrice:  req.Price,
		Status:       domain.OrderStatusFilled,
	}, nil
}

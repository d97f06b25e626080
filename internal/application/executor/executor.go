// Package executor submits approved orders to the exchange with retry,
// idempotency and exactly-once capital bookkeeping. It is the only writer
// of CapitalState in the whole system.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

// ErrExecutionFailed is returned once all retry attempts are exhausted.
// The order is reported as failed and never retried again by the caller.
var ErrExecutionFailed = errors.New("execution failed")

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of submission calls per order
	// (first try included).
	MaxAttempts int
	// BackoffBase is the wait before the first retry; each further retry
	// doubles it.
	BackoffBase time.Duration
	// SubmitTimeout bounds a single exchange call.
	SubmitTimeout time.Duration
}

// recorded is the terminal outcome kept in the idempotency log.
type recorded struct {
	fill domain.Fill
	err  error
}

// Executor runs the per-order state machine:
// pending → submitted → (filled | partial | rejected | failed).
type Executor struct {
	exchange ports.Exchange
	capital  *domain.CapitalState
	cfg      Config

	// submitted is the idempotency log for the process lifetime. Submit
	// holds the executor lock end to end: order submission is single-writer
	// by design, matching the CapitalState discipline.
	submitted map[string]recorded

	sleep func(ctx context.Context, d time.Duration)
	lock  chan struct{} // semaphore serializing Submit
}

// New creates an executor bound to an exchange and the capital ledger.
func New(exchange ports.Exchange, capital *domain.CapitalState, cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}

	e := &Executor{
		exchange:  exchange,
		capital:   capital,
		cfg:       cfg,
		submitted: make(map[string]recorded),
		lock:      make(chan struct{}, 1),
	}
	e.sleep = e.sleepBackoff
	return e
}

// SetSleeper replaces the backoff sleeper. Tests only.
func (e *Executor) SetSleeper(sleep func(ctx context.Context, d time.Duration)) {
	e.sleep = sleep
}

// Submit sends the order to the exchange. A duplicate idempotency key
// short-circuits to the previously recorded outcome with zero exchange
// calls. Transient errors are retried with bounded exponential backoff;
// on exhaustion the order is failed and capital is untouched. A confirmed
// fill mutates CapitalState exactly once, by the FILLED amount.
func (e *Executor) Submit(ctx context.Context, order domain.ApprovedOrder) (domain.Fill, error) {
	select {
	case e.lock <- struct{}{}:
		defer func() { <-e.lock }()
	case <-ctx.Done():
		return domain.Fill{}, ctx.Err()
	}

	if prev, ok := e.submitted[order.IdempotencyKey]; ok {
		slog.Debug("executor: duplicate key, returning recorded outcome",
			"key", order.IdempotencyKey)
		return prev.fill, prev.err
	}

	fill, err := e.submitWithRetry(ctx, order)
	if err == nil {
		if applyErr := e.capital.ApplyFill(order.MarketID, fill.FilledAmount); applyErr != nil {
			// The exchange filled but the ledger refused: this is a real
			// inconsistency, surface it loudly instead of hiding the fill.
			err = fmt.Errorf("executor.Submit: fill confirmed but ledger refused: %w", applyErr)
			fill.Status = domain.OrderStatusFailed
		}
	}

	e.submitted[order.IdempotencyKey] = recorded{fill: fill, err: err}
	return fill, err
}

// submitWithRetry drives the state machine for one order.
func (e *Executor) submitWithRetry(ctx context.Context, order domain.ApprovedOrder) (domain.Fill, error) {
	req := ports.PlaceOrderRequest{
		MarketID:       order.MarketID,
		Direction:      order.Direction,
		Stake:          order.Stake,
		Price:          order.Price,
		IdempotencyKey: order.IdempotencyKey,
	}

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, e.cfg.BackoffBase<<(attempt-1))
		}
		if err := ctx.Err(); err != nil {
			return domain.Fill{Status: domain.OrderStatusFailed}, err
		}

		// Once submitted, the order must resolve to a terminal state even
		// if the cycle is being cancelled, so the call itself only carries
		// its own timeout.
		placeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.SubmitTimeout)
		fill, err := e.exchange.PlaceOrder(placeCtx, req)
		cancel()

		if err == nil {
			if fill.Status != domain.OrderStatusPartial {
				fill.Status = domain.OrderStatusFilled
			}
			slog.Info("executor: order filled",
				"market", order.MarketID,
				"direction", order.Direction,
				"requested", fmt.Sprintf("$%.2f", fill.Requested),
				"filled", fmt.Sprintf("$%.2f", fill.FilledAmount),
				"attempts", attempt+1,
			)
			return fill, nil
		}

		if !errors.Is(err, ports.ErrTransientExecution) {
			slog.Warn("executor: terminal exchange error",
				"market", order.MarketID, "err", err)
			return domain.Fill{Status: domain.OrderStatusRejected},
				fmt.Errorf("executor: order rejected: %w", err)
		}

		lastErr = err
		slog.Warn("executor: transient error, will retry",
			"market", order.MarketID,
			"attempt", attempt+1,
			"max", e.cfg.MaxAttempts,
			"err", err,
		)
	}

	return domain.Fill{Status: domain.OrderStatusFailed},
		fmt.Errorf("executor: %d attempts exhausted: %w: %w",
			e.cfg.MaxAttempts, ErrExecutionFailed, lastErr)
}

// sleepBackoff waits respecting context cancellation.
func (e *Executor) sleepBackoff(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

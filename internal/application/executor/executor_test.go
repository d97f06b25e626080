package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/evbot/internal/domain"
	"github.com/alejandrodnm/evbot/internal/ports"
)

// scriptedExchange returns the scripted errors in order, then succeeds.
type scriptedExchange struct {
	calls  atomic.Int64
	errs   []error
	filled float64 // 0 = fill the full stake
}

func (e *scriptedExchange) PlaceOrder(_ context.Context, req ports.PlaceOrderRequest) (domain.Fill, error) {
	n := e.calls.Add(1)
	if int(n) <= len(e.errs) && e.errs[n-1] != nil {
		return domain.Fill{}, e.errs[n-1]
	}

	filled := req.Stake
	status := domain.OrderStatusFilled
	if e.filled > 0 && e.filled < req.Stake {
		filled = e.filled
		status = domain.OrderStatusPartial
	}
	return domain.Fill{
		OrderID:      fmt.Sprintf("ord-%d", n),
		MarketID:     req.MarketID,
		Direction:    req.Direction,
		Requested:    req.Stake,
		FilledAmount: filled,
		FilledPrice:  req.Price,
		Status:       status,
	}, nil
}

func newTestExecutor(exchange ports.Exchange, capital *domain.CapitalState) *Executor {
	e := New(exchange, capital, Config{MaxAttempts: 3, BackoffBase: time.Millisecond})
	e.SetSleeper(func(context.Context, time.Duration) {})
	return e
}

func order(stake float64) domain.ApprovedOrder {
	return domain.ApprovedOrder{
		MarketID:       "mkt-1",
		Question:       "Will it happen?",
		Direction:      domain.DirectionYes,
		Stake:          stake,
		Price:          0.40,
		IdempotencyKey: domain.OrderKey("mkt-1", "cycle-1"),
	}
}

func TestSubmit_FillMutatesCapitalOnce(t *testing.T) {
	exchange := &scriptedExchange{}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, fill.Status)
	assert.Equal(t, 50.0, fill.FilledAmount)
	assert.Equal(t, 50.0, capital.Reserved())
}

func TestSubmit_DuplicateKeyIsIdempotent(t *testing.T) {
	exchange := &scriptedExchange{}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	first, err := e.Submit(context.Background(), order(50))
	require.NoError(t, err)

	// Misma key: resultado grabado, cero llamadas extra, cero capital extra.
	second, err := e.Submit(context.Background(), order(50))
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, int64(1), exchange.calls.Load())
	assert.Equal(t, 50.0, capital.Reserved())
}

func TestSubmit_PartialFillReservesFilledAmount(t *testing.T) {
	exchange := &scriptedExchange{filled: 30}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPartial, fill.Status)
	// Se reserva lo ejecutado, no lo pedido.
	assert.Equal(t, 30.0, capital.Reserved())
}

func TestSubmit_TransientErrorRetriedThenSucceeds(t *testing.T) {
	transient := fmt.Errorf("dial tcp: timeout: %w", ports.ErrTransientExecution)
	exchange := &scriptedExchange{errs: []error{transient, transient}}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, fill.Status)
	assert.Equal(t, int64(3), exchange.calls.Load())
	assert.Equal(t, 50.0, capital.Reserved())
}

func TestSubmit_TransientExhaustionFailsOrder(t *testing.T) {
	transient := fmt.Errorf("status 503: %w", ports.ErrTransientExecution)
	exchange := &scriptedExchange{errs: []error{transient, transient, transient}}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.Equal(t, domain.OrderStatusFailed, fill.Status)
	// Exactamente MaxAttempts llamadas y el capital intacto.
	assert.Equal(t, int64(3), exchange.calls.Load())
	assert.Equal(t, 0.0, capital.Reserved())
}

func TestSubmit_FailureRecordedForDuplicateKey(t *testing.T) {
	transient := fmt.Errorf("status 503: %w", ports.ErrTransientExecution)
	exchange := &scriptedExchange{errs: []error{transient, transient, transient}}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	_, err := e.Submit(context.Background(), order(50))
	require.Error(t, err)

	// El fallo también es terminal: un reintento con la misma key devuelve
	// el error grabado sin volver al exchange.
	_, err2 := e.Submit(context.Background(), order(50))
	assert.ErrorIs(t, err2, ErrExecutionFailed)
	assert.Equal(t, int64(3), exchange.calls.Load())
}

func TestSubmit_TerminalErrorNotRetried(t *testing.T) {
	exchange := &scriptedExchange{errs: []error{errors.New("rejected 400: invalid market")}}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExecutionFailed)
	assert.Equal(t, domain.OrderStatusRejected, fill.Status)
	assert.Equal(t, int64(1), exchange.calls.Load())
	assert.Equal(t, 0.0, capital.Reserved())
}

func TestSubmit_LedgerRefusalSurfaces(t *testing.T) {
	exchange := &scriptedExchange{}
	capital := domain.NewCapitalState(30) // menos que el stake
	e := newTestExecutor(exchange, capital)

	fill, err := e.Submit(context.Background(), order(50))
	assert.Error(t, err)
	assert.Equal(t, domain.OrderStatusFailed, fill.Status)
}

func TestSubmit_InvariantReservedNeverExceedsTotal(t *testing.T) {
	exchange := &scriptedExchange{}
	capital := domain.NewCapitalState(100)
	e := newTestExecutor(exchange, capital)

	for i := 0; i < 5; i++ {
		o := order(40)
		o.MarketID = fmt.Sprintf("mkt-%d", i)
		o.IdempotencyKey = domain.OrderKey(o.MarketID, "cycle-1")
		_, _ = e.Submit(context.Background(), o)
		assert.LessOrEqual(t, capital.Reserved(), capital.Total())
	}
}

func TestSubmit_CancelledContext(t *testing.T) {
	exchange := &scriptedExchange{}
	capital := domain.NewCapitalState(1000)
	e := newTestExecutor(exchange, capital)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Submit(ctx, order(50))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), exchange.calls.Load())
	assert.Equal(t, 0.0, capital.Reserved())
}

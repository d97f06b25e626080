package domain

// OrderStatus es el estado de una orden dentro del executor.
// Transiciones: pending → submitted → (filled | partial | rejected | failed).
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal devuelve true si el estado no admite más transiciones.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusPartial, OrderStatusRejected, OrderStatusFailed:
		return true
	}
	return false
}

// TradeProposal es un candidato con EV positivo listo para el risk manager.
// Transient: se construye y consume dentro del mismo ciclo.
type TradeProposal struct {
	Market    Market
	Research  ResearchResult
	EV        EVResult
	Direction Direction
	Stake     float64 // stake sugerido en USDC, aún sin clamp
}

// ApprovedOrder es un TradeProposal que pasó todos los checks de riesgo.
// Se consume exactamente una vez por el executor; la idempotency key
// (market ID + cycle ID) protege contra doble submission.
type ApprovedOrder struct {
	MarketID       string
	Question       string
	Direction      Direction
	Stake          float64 // stake final tras clamp de headroom
	Price          float64 // precio de mercado en el momento de la aprobación
	IdempotencyKey string
}

// OrderKey deriva la idempotency key de una orden: el mismo mercado en el
// mismo ciclo produce la misma key, así un re-submit dentro del ciclo
// corto-circuita al resultado ya registrado.
func OrderKey(marketID, cycleID string) string {
	return marketID + ":" + cycleID
}

// Fill es el resultado terminal de una submission confirmada.
type Fill struct {
	OrderID      string
	MarketID     string
	Direction    Direction
	Requested    float64 // stake aprobado
	FilledAmount float64 // stake realmente ejecutado (<= Requested)
	FilledPrice  float64
	Status       OrderStatus // filled | partial
}

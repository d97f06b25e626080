package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en markets.go.

// --- Gamma API ---

// gammaEventsResponse es la respuesta de GET /events de Gamma.
type gammaEventsResponse []gammaEvent

// gammaEvent es un evento con sus mercados. Gamma devuelve varios campos
// numéricos como strings JSON, usamos json.Number para tolerar ambos.
type gammaEvent struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	EndDate   string        `json:"endDate"`
	Liquidity json.Number   `json:"liquidity"`
	Volume24h json.Number   `json:"volume24hr"`
	Closed    bool          `json:"closed"`
	Tags      []gammaTag    `json:"tags"`
	Markets   []gammaMarket `json:"markets"`
}

// gammaTag etiqueta la categoría del evento.
type gammaTag struct {
	Slug string `json:"slug"`
}

// gammaMarket es un mercado individual dentro de un evento.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	OutcomePrices string `json:"outcomePrices"` // JSON string: "[\"0.45\", \"0.55\"]"
}

// --- CLOB API ---

// clobOrderRequest es el body del POST /order.
type clobOrderRequest struct {
	MarketID  string  `json:"market_id"`
	Side      string  `json:"side"`
	AmountUSD float64 `json:"amount"`
	Price     float64 `json:"price"`
	ClientID  string  `json:"client_order_id"` // idempotency key
	OrderType string  `json:"order_type"`
}

// clobOrderResponse es la respuesta del POST /order.
type clobOrderResponse struct {
	OrderID      string  `json:"orderID"`
	Status       string  `json:"status"` // matched | delayed | unmatched
	FilledAmount float64 `json:"makingAmount"`
	FilledPrice  float64 `json:"price"`
	ErrorMsg     string  `json:"errorMsg"`
}

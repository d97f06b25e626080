package domain

import "math"

// Direction es el lado de una apuesta binaria.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// EVUntradeable es el valor centinela para mercados sin edge explotable
// (precio en extremo o liquidez cero). Siempre < 0, así que el orquestador
// lo descarta por la regla general "EV <= 0 = no trade".
const EVUntradeable = -1.0

// EVConfig parametriza el cálculo de expected value.
type EVConfig struct {
	// TransactionCost es el coste estimado por operación (fees + slippage),
	// expresado en las mismas unidades que el edge (fracción de probabilidad).
	TransactionCost float64
	// MinEdge es la diferencia mínima |estimación - precio| para proponer stake.
	MinEdge float64
	// MinConfidence es la confianza mínima del research para proponer stake.
	MinConfidence float64
	// MaxStake es el stake máximo sugerido en USDC por operación.
	// El clamp contra el capital disponible es responsabilidad del risk manager.
	MaxStake float64
}

// EVResult es la recomendación del calculador: proponer, nunca ejecutar.
type EVResult struct {
	ExpectedValue  float64
	Direction      Direction
	SuggestedStake float64 // 0 = edge o confianza por debajo del umbral
	Untradeable    bool
}

// Tradeable devuelve true si la recomendación justifica pasar al risk manager.
func (r EVResult) Tradeable() bool {
	return !r.Untradeable && r.ExpectedValue > 0 && r.SuggestedStake > 0
}

// EvaluateEV calcula el expected value de apostar contra el precio de mercado
// dada una estimación de probabilidad y su confianza.
//
// Fórmula:
//
//	direction = YES si prob > price, NO en caso contrario
//	edge      = |prob - price|
//	EV        = edge - transactionCost
//	stake     = maxStake × min(1, edge×4) × confidence
//
// El stake sugerido crece monótonamente con edge y confianza y satura en
// MaxStake con edge >= 0.25. Mercados con precio en extremo (0 o 1) o
// liquidez cero devuelven el centinela EVUntradeable.
//
// Función pura: no consulta capital ni estado, solo propone.
func EvaluateEV(price, prob, confidence, liquidity float64, cfg EVConfig) EVResult {
	if price <= 0 || price >= 1 || liquidity <= 0 {
		return EVResult{ExpectedValue: EVUntradeable, Untradeable: true}
	}

	direction := DirectionNo
	if prob > price {
		direction = DirectionYes
	}

	edge := math.Abs(prob - price)
	ev := edge - cfg.TransactionCost

	result := EVResult{
		ExpectedValue: ev,
		Direction:     direction,
	}

	if edge < cfg.MinEdge || confidence < cfg.MinConfidence {
		return result
	}

	result.SuggestedStake = cfg.MaxStake * math.Min(1, edge*4) * confidence
	return result
}

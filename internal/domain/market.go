package domain

import "time"

// Market es el snapshot inmutable de un mercado binario de predicción.
// Se refresca en cada ciclo desde el proveedor de mercados; el resto del
// pipeline nunca lo muta.
type Market struct {
	ID        string
	Question  string
	Slug      string
	Category  string
	Price     float64 // precio YES actual = probabilidad implícita (0..1)
	Liquidity float64 // liquidez disponible en USDC
	Volume24h float64
	EndDate   time.Time
}

// HoursToResolution devuelve las horas hasta que el mercado se resuelve.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// PriceExtreme devuelve true si el precio está en un extremo (0 o 1),
// donde no existe edge explotable.
func (m Market) PriceExtreme() bool {
	return m.Price <= 0 || m.Price >= 1
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del ID como fallback.
func TruncateQuestion(question, id string, maxLen int) string {
	q := question
	if q == "" {
		if len(id) > 20 {
			q = id[:20] + "..."
		} else {
			q = id
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}

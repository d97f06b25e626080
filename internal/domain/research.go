package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrResearchUnavailable indica que el colaborador externo de research falló.
// El mercado queda sin puntuar este ciclo; el siguiente GetOrFetch reintenta.
var ErrResearchUnavailable = errors.New("research unavailable")

// ResearchQuery identifica una petición de research para un mercado.
// Focus y ContextNotes orientan al colaborador pero NO forman parte del
// fingerprint: la misma pregunta con distinto contexto es la misma entrada
// de cache.
type ResearchQuery struct {
	MarketID     string
	Question     string
	Focus        string
	ContextNotes []string // resúmenes de ciclos anteriores, continuidad cualitativa
}

// Fingerprint deriva la clave de cache: hash estable de market ID + pregunta
// normalizada.
func (q ResearchQuery) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(q.MarketID))
	h.Write([]byte{'\n'})
	h.Write([]byte(NormalizeQuestion(q.Question)))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuestion colapsa espacios y baja a minúsculas para que variaciones
// cosméticas del título no provoquen un research pagado de más.
func NormalizeQuestion(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ResearchResult es el resultado tipado de un research. Inmutable una vez
// escrito en cache; la frescura la decide el lector contra el TTL.
type ResearchResult struct {
	Fingerprint string
	MarketID    string
	Question    string
	Summary     string
	Probability float64 // probabilidad estimada de que resuelva YES (0..1)
	Confidence  float64 // confianza en la estimación (0..1)
	KeyFactors  []string
	Sources     []string
	RetrievedAt time.Time
}

// Fresh devuelve true si el resultado sigue dentro de la ventana de TTL.
func (r ResearchResult) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.RetrievedAt) < ttl
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// CycleOutcome clasifica qué pasó con un mercado dentro de un ciclo.
type CycleOutcome string

const (
	OutcomeExecuted CycleOutcome = "executed" // orden confirmada (fill total)
	OutcomePartial  CycleOutcome = "partial"  // fill parcial confirmado
	OutcomeRejected CycleOutcome = "rejected" // risk manager dijo no
	OutcomeFailed   CycleOutcome = "failed"   // execution agotó los reintentos
	OutcomeSkipped  CycleOutcome = "skipped"  // sin research, EV <= 0 o untradeable
)

// CycleEntry es el registro por-mercado de un ciclo. Todo error per-market
// acaba aquí como entrada, nunca aborta el ciclo.
type CycleEntry struct {
	MarketID  string
	Question  string
	Outcome   CycleOutcome
	Reason    string
	Direction Direction
	Stake     float64
	Filled    float64
	EV        float64
}

// CapitalTotals es la foto de capital al cierre del ciclo.
type CapitalTotals struct {
	Total    float64
	Reserved float64
}

// Available devuelve el capital libre al cierre del ciclo.
func (t CapitalTotals) Available() float64 {
	return t.Total - t.Reserved
}

// CycleSummary es el registro append-only de un ciclo completo. Se persiste
// al final del ciclo y nunca se muta después; un ciclo SIEMPRE produce un
// summary, aunque sea solo de skips.
type CycleSummary struct {
	CycleID       string
	StartedAt     time.Time
	FinishedAt    time.Time
	DryRun        bool
	TradingPaused bool   // guard de liquidez activo: sin apuestas nuevas
	Notes         string // avisos de ciclo (fetch fallido, pausa, etc.)
	MarketsSeen   int
	ResearchCalls int // llamadas pagadas al colaborador este ciclo
	CacheHits     int
	Entries       []CycleEntry
	Capital       CapitalTotals
}

// CountByOutcome devuelve cuántas entradas hay con el outcome dado.
func (s CycleSummary) CountByOutcome(o CycleOutcome) int {
	n := 0
	for _, e := range s.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// ContextLine condensa el ciclo en una línea para dar continuidad cualitativa
// al research del ciclo siguiente. Nunca entra en el fingerprint de cache.
func (s CycleSummary) ContextLine() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] markets=%d executed=%d rejected=%d skipped=%d capital=$%.2f available=$%.2f",
		s.StartedAt.UTC().Format("2006-01-02 15:04"),
		s.MarketsSeen,
		s.CountByOutcome(OutcomeExecuted)+s.CountByOutcome(OutcomePartial),
		s.CountByOutcome(OutcomeRejected),
		s.CountByOutcome(OutcomeSkipped),
		s.Capital.Total,
		s.Capital.Available(),
	)

	shown := 0
	for _, e := range s.Entries {
		if e.Outcome != OutcomeExecuted && e.Outcome != OutcomePartial {
			continue
		}
		if shown >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s %s $%.2f (ev %.3f)",
			e.Direction, TruncateQuestion(e.Question, e.MarketID, 40), e.Filled, e.EV)
		shown++
	}
	return sb.String()
}

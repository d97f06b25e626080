package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime el resumen del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, summary *domain.CycleSummary) error {
	if summary == nil {
		return nil
	}
	if c.table {
		c.printFull(summary)
	} else {
		c.printCompact(summary)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(s *domain.CycleSummary) {
	now := s.FinishedAt.Format("15:04:05")
	executed := s.CountByOutcome(domain.OutcomeExecuted) + s.CountByOutcome(domain.OutcomePartial)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] cycle %s: %d mkts → exec:%d rej:%d skip:%d | research:%d cache:%d | $%.2f free of $%.2f",
		now, shortID(s.CycleID), s.MarketsSeen,
		executed,
		s.CountByOutcome(domain.OutcomeRejected),
		s.CountByOutcome(domain.OutcomeSkipped),
		s.ResearchCalls, s.CacheHits,
		s.Capital.Available(), s.Capital.Total,
	)
	if s.DryRun {
		sb.WriteString(" [dry-run]")
	}
	if s.TradingPaused {
		sb.WriteString(" [PAUSED]")
	}
	if s.Notes != "" {
		fmt.Fprintf(&sb, " | %s", s.Notes)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla por-mercado con el pie de capital.
func (c *Console) printFull(s *domain.CycleSummary) {
	mode := "live"
	if s.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(c.out, "\n[%s] cycle %s (%s) — %d markets, took %s\n",
		s.FinishedAt.Format("15:04:05"), shortID(s.CycleID), mode,
		s.MarketsSeen, s.FinishedAt.Sub(s.StartedAt).Truncate(time.Millisecond))

	if s.TradingPaused {
		fmt.Fprintf(c.out, "  TRADING PAUSED: %s\n", s.Notes)
	} else if s.Notes != "" {
		fmt.Fprintf(c.out, "  note: %s\n", s.Notes)
	}

	if len(s.Entries) > 0 {
		c.printTable(s.Entries)
	}

	fmt.Fprintf(c.out, "  research: %d paid calls, %d cache hits\n", s.ResearchCalls, s.CacheHits)
	fmt.Fprintf(c.out, "  capital:  $%.2f total, $%.2f reserved, $%.2f available\n",
		s.Capital.Total, s.Capital.Reserved, s.Capital.Available())
}

// printTable imprime una fila por mercado del ciclo.
func (c *Console) printTable(entries []domain.CycleEntry) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Outcome", "Dir", "Stake", "Filled", "EV", "Reason")

	for i, e := range entries {
		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateQuestion(e.Question, e.MarketID, 40),
			string(e.Outcome),
			string(e.Direction),
			stakeLabel(e.Stake),
			stakeLabel(e.Filled),
			evLabel(e.EV),
			e.Reason,
		)
	}

	table.Render()
}

// stakeLabel formatea un importe, vacío si no aplica.
func stakeLabel(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", v)
}

// evLabel formatea el EV, vacío para el sentinel de untradeable.
func evLabel(ev float64) string {
	if ev == domain.EVUntradeable {
		return "-"
	}
	return fmt.Sprintf("%.4f", ev)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// ResearchStore es el almacén persistente de research, content-addressed por
// fingerprint. Los resultados son inmutables una vez escritos; un upsert con
// el mismo fingerprint reemplaza la fila completa (last write wins).
type ResearchStore interface {
	// GetResearch devuelve el resultado para el fingerprint, si existe.
	// La frescura la decide el llamador: aquí no se aplica TTL.
	GetResearch(ctx context.Context, fingerprint string) (domain.ResearchResult, bool, error)

	// PutResearch inserta o reemplaza el resultado por fingerprint.
	PutResearch(ctx context.Context, r domain.ResearchResult) error

	// PruneResearch borra filas recuperadas antes del instante dado, para
	// acotar el crecimiento del almacén.
	PruneResearch(ctx context.Context, olderThan time.Time) (int64, error)
}

// CycleStore es el log append-only de resúmenes de ciclo.
type CycleStore interface {
	// AppendCycle persiste el resumen. Nunca se muta después.
	AppendCycle(ctx context.Context, s domain.CycleSummary) error

	// RecentCycles devuelve los n resúmenes más recientes, el más nuevo
	// primero.
	RecentCycles(ctx context.Context, n int) ([]domain.CycleSummary, error)
}

package ports

import (
	"context"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// MarketProvider obtiene los mercados candidatos para un ciclo.
type MarketProvider interface {
	// ListCandidateMarkets devuelve los mercados activos que pasan los
	// filtros configurados (liquidez mínima, categorías excluidas, banda
	// de precio), ordenados por liquidez descendente. Finito por ciclo.
	ListCandidateMarkets(ctx context.Context) ([]domain.Market, error)
}

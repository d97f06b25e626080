package ports

import (
	"context"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// Researcher es el colaborador externo de research (LLM + web search).
// Opaco, lento y potencialmente caro: cada llamada cuesta dinero, así que
// SIEMPRE se consume a través de la research cache, nunca directamente.
type Researcher interface {
	// Research investiga un mercado y devuelve una estimación tipada.
	// Errores de red/proveedor se devuelven envolviendo
	// domain.ErrResearchUnavailable.
	Research(ctx context.Context, query domain.ResearchQuery) (domain.ResearchResult, error)
}

package polymarket

// markets.go — listado de mercados candidatos desde Gamma.
//
// Filtros aplicados antes de devolver nada al engine:
//   - liquidez mínima configurable
//   - categorías excluidas (deportes, price betting de corto plazo)
//   - banda de precio: fuera de 20%-80% los extremos no dejan edge rentable
//   - horizonte de resolución mínimo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/evbot/internal/domain"
)

const gammaEventsPath = "/events"

// MarketFilter controla qué mercados entran en un ciclo.
type MarketFilter struct {
	Limit              int
	MinLiquidity       float64
	MinPrice           float64
	MaxPrice           float64
	MinHoursToResolve  float64
	ExcludedCategories []string
}

// knownCategories son los tags que reconocemos como categoría primaria.
var knownCategories = []string{
	"politics", "crypto", "science", "entertainment", "business", "tech", "finance",
}

// MarketProvider implementa ports.MarketProvider sobre el API de Gamma.
type MarketProvider struct {
	client *Client
	filter MarketFilter
}

// NewMarketProvider crea el provider con el filtro dado.
func NewMarketProvider(client *Client, filter MarketFilter) *MarketProvider {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return &MarketProvider{client: client, filter: filter}
}

// ListCandidateMarkets devuelve los mercados activos que pasan los filtros,
// ordenados por liquidez descendente (orden del API).
func (p *MarketProvider) ListCandidateMarkets(ctx context.Context) ([]domain.Market, error) {
	// Pedimos el doble del límite porque los filtros descartan una parte.
	url := fmt.Sprintf("%s%s?closed=false&order=liquidity&ascending=false&limit=%d",
		p.client.gammaBase, gammaEventsPath, p.filter.Limit*2)

	var events gammaEventsResponse
	if err := p.client.get(ctx, p.client.gammaLimiter, url, &events); err != nil {
		return nil, fmt.Errorf("polymarket.ListCandidateMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, p.filter.Limit)
	for _, ev := range events {
		m, ok := p.mapEvent(ev)
		if !ok {
			continue
		}
		markets = append(markets, m)
		if len(markets) >= p.filter.Limit {
			break
		}
	}

	slog.Debug("candidate markets fetched",
		"events", len(events),
		"candidates", len(markets),
	)
	return markets, nil
}

// mapEvent convierte un evento Gamma en un Market del dominio, aplicando
// los filtros. Devuelve ok=false si el evento no califica.
func (p *MarketProvider) mapEvent(ev gammaEvent) (domain.Market, bool) {
	if ev.Closed || len(ev.Markets) == 0 {
		return domain.Market{}, false
	}

	liquidity, _ := ev.Liquidity.Float64()
	if liquidity < p.filter.MinLiquidity {
		return domain.Market{}, false
	}

	category := primaryCategory(ev.Tags)
	for _, excluded := range p.filter.ExcludedCategories {
		if tagsContain(ev.Tags, excluded) {
			return domain.Market{}, false
		}
	}

	var active *gammaMarket
	for i := range ev.Markets {
		if ev.Markets[i].Active && !ev.Markets[i].Closed {
			active = &ev.Markets[i]
			break
		}
	}
	if active == nil {
		return domain.Market{}, false
	}

	price := parseYesPrice(active.OutcomePrices)
	if price < p.filter.MinPrice || price > p.filter.MaxPrice {
		return domain.Market{}, false
	}

	volume, _ := ev.Volume24h.Float64()

	m := domain.Market{
		ID:        ev.ID,
		Question:  ev.Title,
		Slug:      ev.Slug,
		Category:  category,
		Price:     price,
		Liquidity: liquidity,
		Volume24h: volume,
		EndDate:   parseEndDate(ev.EndDate),
	}

	// Sin EndDate no hay horizonte que comprobar; con él, los mercados que
	// resuelven demasiado pronto no dan tiempo a que el edge se materialice.
	if p.filter.MinHoursToResolve > 0 && !m.EndDate.IsZero() &&
		m.HoursToResolution() < p.filter.MinHoursToResolve {
		return domain.Market{}, false
	}

	return m, true
}

// parseYesPrice extrae el precio YES del string JSON de outcomePrices.
func parseYesPrice(outcomePrices string) float64 {
	if outcomePrices == "" {
		return 0
	}
	var prices []string
	if err := json.Unmarshal([]byte(outcomePrices), &prices); err != nil || len(prices) == 0 {
		return 0
	}
	var p float64
	if err := json.Unmarshal([]byte(prices[0]), &p); err != nil {
		return 0
	}
	return p
}

// parseEndDate tolera los dos formatos de fecha que devuelve Gamma.
func parseEndDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// primaryCategory devuelve el primer tag reconocido, u "other".
func primaryCategory(tags []gammaTag) string {
	for _, t := range tags {
		slug := strings.ToLower(t.Slug)
		for _, known := range knownCategories {
			if slug == known {
				return slug
			}
		}
	}
	return "other"
}

// tagsContain busca un slug (case-insensitive) entre los tags del evento.
func tagsContain(tags []gammaTag, slug string) bool {
	for _, t := range tags {
		if strings.EqualFold(t.Slug, slug) {
			return true
		}
	}
	return false
}

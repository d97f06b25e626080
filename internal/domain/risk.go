package domain

import "math"

// RejectionReason identifica por qué el risk manager rechazó una propuesta.
// Los checks se aplican en orden fijo y gana el primer fallo, así el motivo
// reportado es determinístico.
type RejectionReason string

const (
	RejectionNone               RejectionReason = ""
	RejectInsufficientReserve   RejectionReason = "insufficient_reserve"
	RejectInsufficientLiquidity RejectionReason = "insufficient_liquidity"
	RejectExposureCapExceeded   RejectionReason = "exposure_cap_exceeded"
	RejectGlobalCapExceeded     RejectionReason = "global_cap_exceeded"
	RejectDailyCapExceeded      RejectionReason = "daily_cap_exceeded"
)

// RiskConfig contiene los límites de preservación de capital.
type RiskConfig struct {
	// ReserveMinimum es el capital en USDC que debe quedar siempre sin reservar.
	ReserveMinimum float64
	// PerMarketCap es la exposición máxima en USDC por mercado.
	PerMarketCap float64
	// GlobalCap es la exposición máxima en USDC sumando todos los mercados.
	GlobalCap float64
	// LiquidityFloorRatio exige liquidity estrictamente mayor que
	// ratio × stake para que un fill no mueva el precio contra nosotros.
	LiquidityFloorRatio float64
	// DailyStakeCap limita el total apostado en un día natural (UTC).
	DailyStakeCap float64
}

// Authorize aplica los checks de riesgo en orden determinístico sobre un
// snapshot de capital. Orden: reserva → liquidez → cap por mercado → cap
// global → cap diario. El primer fallo gana.
//
// En caso de éxito, el stake se clampa al mínimo entre el sugerido y todo el
// headroom restante (reserva, mercado, global, diario) y se adjunta la
// idempotency key. Función pura del snapshot: re-ejecutarla con los mismos
// inputs es determinístico y sin efectos.
func Authorize(p TradeProposal, snap CapitalSnapshot, cfg RiskConfig, key string) (ApprovedOrder, RejectionReason) {
	reserveHeadroom := snap.Available() - cfg.ReserveMinimum
	if reserveHeadroom <= 0 {
		return ApprovedOrder{}, RejectInsufficientReserve
	}

	if p.Market.Liquidity <= cfg.LiquidityFloorRatio*p.Stake {
		return ApprovedOrder{}, RejectInsufficientLiquidity
	}

	marketHeadroom := cfg.PerMarketCap - snap.MarketExposure
	if snap.MarketExposure+p.Stake > cfg.PerMarketCap {
		return ApprovedOrder{}, RejectExposureCapExceeded
	}

	globalHeadroom := cfg.GlobalCap - snap.GlobalExposure
	if snap.GlobalExposure+p.Stake > cfg.GlobalCap {
		return ApprovedOrder{}, RejectGlobalCapExceeded
	}

	dailyHeadroom := cfg.DailyStakeCap - snap.SpentToday
	if cfg.DailyStakeCap > 0 && snap.SpentToday+p.Stake > cfg.DailyStakeCap {
		return ApprovedOrder{}, RejectDailyCapExceeded
	}
	if cfg.DailyStakeCap <= 0 {
		dailyHeadroom = math.Inf(1)
	}

	stake := math.Min(p.Stake, reserveHeadroom)
	stake = math.Min(stake, marketHeadroom)
	stake = math.Min(stake, globalHeadroom)
	stake = math.Min(stake, dailyHeadroom)

	return ApprovedOrder{
		MarketID:       p.Market.ID,
		Question:       p.Market.Question,
		Direction:      p.Direction,
		Stake:          stake,
		Price:          p.Market.Price,
		IdempotencyKey: key,
	}, RejectionNone
}

package api

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/jtcarver/portfolio-ledger/internal/analytics"
	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// View helpers round derived percentages and ratios to two decimal
// places. Stored quantities, prices and bases keep full precision.

func positionView(p *models.Position) map[string]interface{} {
	return map[string]interface{}{
		"symbol":          p.Symbol,
		"position_type":   p.PositionType,
		"quantity":        p.Quantity,
		"cost_basis":      p.CostBasis,
		"current_price":   p.CurrentPrice,
		"sector":          p.Sector,
		"industry":        p.Industry,
		"beta":            p.Beta,
		"entry_date":      p.EntryDate,
		"last_updated":    p.LastUpdated,
		"position_value":  p.Value(),
		"unrealized_gain": p.UnrealizedGain().Round(2),
		"percent_change":  p.PercentChange().Round(2),
	}
}

func transactionView(t *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"id":               t.ID,
		"symbol":           t.Symbol,
		"transaction_type": t.TransactionType,
		"quantity":         t.Quantity,
		"price":            t.Price,
		"date":             t.Date,
		"realized_gain":    t.RealizedGain,
		"total_value":      t.TotalValue(),
	}
}

func metadataView(m models.Metadata) map[string]interface{} {
	return map[string]interface{}{
		"total_long_value":      m.TotalLongValue,
		"total_short_value":     m.TotalShortValue,
		"long_short_ratio":      roundRatio(m.LongShortRatio),
		"total_realized_gains":  m.TotalRealizedGains,
		"sector_exposure": map[string]interface{}{
			"long":  roundExposure(m.SectorExposure.Long),
			"short": roundExposure(m.SectorExposure.Short),
		},
		"long_positions_count":  m.LongPositionsCount,
		"short_positions_count": m.ShortPositionsCount,
		"weighted_long_beta":    m.WeightedLongBeta.Round(2),
		"weighted_short_beta":   m.WeightedShortBeta.Round(2),
		"last_updated":          m.LastUpdated,
	}
}

func portfolioMetricsView(m *analytics.PortfolioMetrics) map[string]interface{} {
	top := make([]map[string]interface{}, 0, len(m.TopPositions))
	for _, w := range m.TopPositions {
		top = append(top, positionWeightView(w))
	}

	view := map[string]interface{}{
		"weighted_long_beta":   m.WeightedLongBeta.Round(2),
		"weighted_short_beta":  m.WeightedShortBeta.Round(2),
		"net_beta_exposure":    m.NetBetaExposure.Round(2),
		"long_short_ratio":     roundRatio(m.LongShortRatio),
		"sector_concentration": roundExposure(m.SectorConcentration),
		"top_positions":        top,
	}
	if m.LargestPosition != nil {
		view["largest_position"] = positionWeightView(*m.LargestPosition)
	}
	return view
}

func positionWeightView(w analytics.PositionWeight) map[string]interface{} {
	return map[string]interface{}{
		"symbol":        w.Symbol,
		"position_type": w.PositionType,
		"weight":        w.Weight.Round(2),
	}
}

func performanceMetricsView(m *analytics.PerformanceMetrics) map[string]interface{} {
	return map[string]interface{}{
		"realized_gains": m.RealizedGains,
		"daily_pnl":      m.DailyPnL,
		"sharpe_ratio":   round2(m.SharpeRatio),
		"win_rate":       round2(m.WinRate),
		"winning_trades": m.WinningTrades,
		"losing_trades":  m.LosingTrades,
		"total_trades":   m.TotalTrades,
		"average_win":    m.AverageWin.Round(2),
		"average_loss":   m.AverageLoss.Round(2),
	}
}

func roundExposure(exposure map[string]decimal.Decimal) map[string]decimal.Decimal {
	rounded := make(map[string]decimal.Decimal, len(exposure))
	for sector, pct := range exposure {
		rounded[sector] = pct.Round(2)
	}
	return rounded
}

func roundRatio(r models.Ratio) models.Ratio {
	if !r.Valid {
		return r
	}
	return models.DefinedRatio(r.Value.Round(2))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

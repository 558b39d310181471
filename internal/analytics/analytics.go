package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

const tradingDaysPerYear = 252

// Snapshotter supplies a consistent read-only copy of the aggregate
type Snapshotter interface {
	Snapshot() *models.Portfolio
}

// Engine derives risk and performance statistics from portfolio
// snapshots. It never mutates the aggregate.
type Engine struct {
	source       Snapshotter
	riskFreeRate float64
	log          zerolog.Logger
}

// New creates an engine. riskFreeRate is annual, e.g. 0.02 for 2%.
func New(source Snapshotter, riskFreeRate float64, log zerolog.Logger) *Engine {
	return &Engine{
		source:       source,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "analytics").Logger(),
	}
}

// PositionWeight is one position's share of total portfolio value
type PositionWeight struct {
	Symbol       string              `json:"symbol"`
	PositionType models.PositionType `json:"position_type"`
	Weight       decimal.Decimal     `json:"weight"`
}

// PortfolioMetrics holds point-in-time risk statistics
type PortfolioMetrics struct {
	WeightedLongBeta      decimal.Decimal            `json:"weighted_long_beta"`
	WeightedShortBeta     decimal.Decimal            `json:"weighted_short_beta"`
	NetBetaExposure       decimal.Decimal            `json:"net_beta_exposure"`
	LongShortRatio        models.Ratio               `json:"long_short_ratio"`
	SectorConcentration   map[string]decimal.Decimal `json:"sector_concentration"`
	LargestPosition       *PositionWeight            `json:"largest_position,omitempty"`
	TopPositions          []PositionWeight           `json:"top_positions"`
}

// PerformanceMetrics holds realized trading statistics over a window
type PerformanceMetrics struct {
	RealizedGains decimal.Decimal            `json:"realized_gains"`
	DailyPnL      map[string]decimal.Decimal `json:"daily_pnl"`
	SharpeRatio   float64                    `json:"sharpe_ratio"`
	WinRate       float64                    `json:"win_rate"`
	WinningTrades int                        `json:"winning_trades"`
	LosingTrades  int                        `json:"losing_trades"`
	TotalTrades   int                        `json:"total_trades"`
	AverageWin    decimal.Decimal            `json:"average_win"`
	AverageLoss   decimal.Decimal            `json:"average_loss"`
}

// CalculatePortfolioMetrics derives beta exposure, sector concentration
// and position concentration from the current snapshot. Percentages carry
// full precision; rounding belongs to the presentation boundary.
func (e *Engine) CalculatePortfolioMetrics() *PortfolioMetrics {
	p := e.source.Snapshot()
	m := p.Metadata

	metrics := &PortfolioMetrics{
		WeightedLongBeta:    m.WeightedLongBeta,
		WeightedShortBeta:   m.WeightedShortBeta,
		NetBetaExposure:     m.WeightedLongBeta.Sub(m.WeightedShortBeta),
		LongShortRatio:      m.LongShortRatio,
		SectorConcentration: sectorConcentration(p.Positions),
		TopPositions:        []PositionWeight{},
	}

	weights := positionWeights(p.Positions)
	if len(weights) > 0 {
		largest := weights[0]
		metrics.LargestPosition = &largest

		top := len(weights)
		if top > 5 {
			top = 5
		}
		metrics.TopPositions = weights[:top]
	}
	return metrics
}

// CalculatePerformanceMetrics derives realized performance statistics
// over transactions dated within [start, end].
func (e *Engine) CalculatePerformanceMetrics(start, end time.Time) *PerformanceMetrics {
	p := e.source.Snapshot()

	metrics := &PerformanceMetrics{
		RealizedGains: decimal.Zero,
		DailyPnL:      map[string]decimal.Decimal{},
		AverageWin:    decimal.Zero,
		AverageLoss:   decimal.Zero,
	}

	var wins, losses decimal.Decimal
	for _, t := range p.Transactions {
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		if !t.RealizedGain.Valid {
			continue
		}
		gain := t.RealizedGain.Decimal

		metrics.RealizedGains = metrics.RealizedGains.Add(gain)
		metrics.TotalTrades++

		day := t.Date.UTC().Format("2006-01-02")
		metrics.DailyPnL[day] = metrics.DailyPnL[day].Add(gain)

		if gain.IsPositive() {
			metrics.WinningTrades++
			wins = wins.Add(gain)
		} else if gain.IsNegative() {
			metrics.LosingTrades++
			losses = losses.Add(gain)
		}
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	}
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = wins.Div(decimal.NewFromInt(int64(metrics.WinningTrades)))
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = losses.Div(decimal.NewFromInt(int64(metrics.LosingTrades)))
	}

	metrics.SharpeRatio = e.sharpeRatio(metrics.DailyPnL)
	return metrics
}

// sharpeRatio annualizes mean daily P&L over its sample standard
// deviation. Fewer than two samples, or zero variance, yields 0.
func (e *Engine) sharpeRatio(dailyPnL map[string]decimal.Decimal) float64 {
	if len(dailyPnL) < 2 {
		return 0
	}

	samples := make([]float64, 0, len(dailyPnL))
	for _, pnl := range dailyPnL {
		samples = append(samples, pnl.InexactFloat64())
	}

	mean := stat.Mean(samples, nil)
	stdDev := stat.StdDev(samples, nil)
	if stdDev == 0 {
		return 0
	}

	dailyRiskFree := e.riskFreeRate / tradingDaysPerYear
	return (mean - dailyRiskFree) / stdDev * math.Sqrt(tradingDaysPerYear)
}

// sectorConcentration is the percentage of total position value per
// sector across both directions combined
func sectorConcentration(positions []*models.Position) map[string]decimal.Decimal {
	concentration := map[string]decimal.Decimal{}

	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.Value())
	}
	if !total.IsPositive() {
		return concentration
	}

	for _, pos := range positions {
		pct := pos.Value().Div(total).Mul(decimal.NewFromInt(100))
		concentration[pos.Sector] = concentration[pos.Sector].Add(pct)
	}
	return concentration
}

// positionWeights returns every position's share of total value, sorted
// descending
func positionWeights(positions []*models.Position) []PositionWeight {
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.Value())
	}
	if !total.IsPositive() {
		return nil
	}

	weights := make([]PositionWeight, 0, len(positions))
	for _, pos := range positions {
		weights = append(weights, PositionWeight{
			Symbol:       pos.Symbol,
			PositionType: pos.PositionType,
			Weight:       pos.Value().Div(total).Mul(decimal.NewFromInt(100)),
		})
	}
	sort.Slice(weights, func(i, j int) bool {
		return weights[i].Weight.GreaterThan(weights[j].Weight)
	})
	return weights
}

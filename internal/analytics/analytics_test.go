package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

type fixedSnapshot struct {
	portfolio *models.Portfolio
}

func (s *fixedSnapshot) Snapshot() *models.Portfolio {
	return s.portfolio.Clone()
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func pos(t *testing.T, symbol string, pt models.PositionType, qty, price, beta, sector string) *models.Position {
	t.Helper()
	return &models.Position{
		Symbol:       symbol,
		PositionType: pt,
		Quantity:     dec(t, qty),
		CostBasis:    dec(t, price),
		CurrentPrice: dec(t, price),
		Sector:       sector,
		Beta:         dec(t, beta),
	}
}

func closing(t *testing.T, day string, gain string) *models.Transaction {
	t.Helper()
	date, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	return &models.Transaction{
		Symbol:          "AAPL",
		TransactionType: models.TransactionTypeSell,
		Quantity:        dec(t, "1"),
		Price:           dec(t, "100"),
		Date:            date,
		RealizedGain:    decimal.NullDecimal{Decimal: dec(t, gain), Valid: true},
	}
}

func newEngine(t *testing.T, p *models.Portfolio) *Engine {
	t.Helper()
	p.UpdateMetadata()
	return New(&fixedSnapshot{portfolio: p}, 0.02, zerolog.Nop())
}

func TestCalculatePortfolioMetrics(t *testing.T) {
	t.Run("empty portfolio yields zeroed metrics", func(t *testing.T) {
		engine := newEngine(t, models.NewPortfolio(models.DefaultPortfolioID))

		m := engine.CalculatePortfolioMetrics()
		assert.True(t, m.WeightedLongBeta.IsZero())
		assert.True(t, m.NetBetaExposure.IsZero())
		assert.False(t, m.LongShortRatio.Valid)
		assert.Empty(t, m.SectorConcentration)
		assert.Nil(t, m.LargestPosition)
		assert.Empty(t, m.TopPositions)
	})

	t.Run("beta exposure nets long against short", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AddPosition(pos(t, "AAPL", models.PositionTypeLong, "100", "160", "1.2", "Technology")) // 16000
		p.AddPosition(pos(t, "XOM", models.PositionTypeLong, "50", "80", "0.8", "Energy"))        // 4000
		p.AddPosition(pos(t, "GME", models.PositionTypeShort, "100", "40", "1.5", "Consumer"))    // 4000
		engine := newEngine(t, p)

		m := engine.CalculatePortfolioMetrics()

		// long: 0.8*1.2 + 0.2*0.8 = 1.12; short: 1.5
		assert.True(t, m.WeightedLongBeta.Equal(dec(t, "1.12")))
		assert.True(t, m.WeightedShortBeta.Equal(dec(t, "1.5")))
		assert.True(t, m.NetBetaExposure.Equal(dec(t, "-0.38")))

		require.True(t, m.LongShortRatio.Valid)
		assert.True(t, m.LongShortRatio.Value.Equal(dec(t, "5")))
	})

	t.Run("sector concentration spans both directions", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AddPosition(pos(t, "AAPL", models.PositionTypeLong, "100", "160", "1.2", "Technology")) // 16000
		p.AddPosition(pos(t, "MSFT", models.PositionTypeShort, "10", "400", "1.0", "Technology")) // 4000
		p.AddPosition(pos(t, "XOM", models.PositionTypeLong, "50", "100", "0.8", "Energy"))       // 5000
		engine := newEngine(t, p)

		m := engine.CalculatePortfolioMetrics()

		assert.Equal(t, "80", m.SectorConcentration["Technology"].String())
		assert.Equal(t, "20", m.SectorConcentration["Energy"].String())
	})

	t.Run("top positions are sorted by weight and capped at five", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		symbols := []string{"A", "B", "C", "D", "E", "F", "G"}
		for i, s := range symbols {
			p.AddPosition(pos(t, s, models.PositionTypeLong, "10", decimal.NewFromInt(int64(10*(i+1))).String(), "1", "Misc"))
		}
		engine := newEngine(t, p)

		m := engine.CalculatePortfolioMetrics()

		require.NotNil(t, m.LargestPosition)
		assert.Equal(t, "G", m.LargestPosition.Symbol)
		require.Len(t, m.TopPositions, 5)
		assert.Equal(t, "G", m.TopPositions[0].Symbol)
		assert.Equal(t, "C", m.TopPositions[4].Symbol)
		for i := 1; i < len(m.TopPositions); i++ {
			assert.True(t, m.TopPositions[i].Weight.LessThanOrEqual(m.TopPositions[i-1].Weight))
		}
	})
}

func TestCalculatePerformanceMetrics(t *testing.T) {
	window := func() (time.Time, time.Time) {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	}

	t.Run("no closing trades yields zeroed metrics", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(&models.Transaction{
			Symbol:          "AAPL",
			TransactionType: models.TransactionTypeBuy,
			Quantity:        dec(t, "10"),
			Price:           dec(t, "100"),
			Date:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		engine := newEngine(t, p)

		start, end := window()
		m := engine.CalculatePerformanceMetrics(start, end)

		assert.Zero(t, m.TotalTrades)
		assert.True(t, m.RealizedGains.IsZero())
		assert.Zero(t, m.SharpeRatio)
		assert.Zero(t, m.WinRate)
		assert.Empty(t, m.DailyPnL)
	})

	t.Run("aggregates wins, losses and daily buckets", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(closing(t, "2024-03-01", "100"))
		p.AppendTransaction(closing(t, "2024-03-01", "50"))
		p.AppendTransaction(closing(t, "2024-03-04", "-60"))
		p.AppendTransaction(closing(t, "2024-03-05", "200"))
		engine := newEngine(t, p)

		start, end := window()
		m := engine.CalculatePerformanceMetrics(start, end)

		assert.Equal(t, 4, m.TotalTrades)
		assert.Equal(t, 3, m.WinningTrades)
		assert.Equal(t, 1, m.LosingTrades)
		assert.True(t, m.RealizedGains.Equal(dec(t, "290")))
		assert.InDelta(t, 0.75, m.WinRate, 1e-9)

		// (100+50+200)/3 and -60/1
		assert.Equal(t, "116.67", m.AverageWin.Round(2).String())
		assert.True(t, m.AverageLoss.Equal(dec(t, "-60")))

		require.Len(t, m.DailyPnL, 3)
		assert.True(t, m.DailyPnL["2024-03-01"].Equal(dec(t, "150")))
		assert.True(t, m.DailyPnL["2024-03-04"].Equal(dec(t, "-60")))
	})

	t.Run("window bounds filter transactions", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(closing(t, "2024-02-28", "999"))
		p.AppendTransaction(closing(t, "2024-03-01", "100"))
		p.AppendTransaction(closing(t, "2024-03-10", "999"))
		engine := newEngine(t, p)

		m := engine.CalculatePerformanceMetrics(
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC),
		)

		assert.Equal(t, 1, m.TotalTrades)
		assert.True(t, m.RealizedGains.Equal(dec(t, "100")))
	})

	t.Run("sharpe matches an independent computation", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(closing(t, "2024-03-01", "150"))
		p.AppendTransaction(closing(t, "2024-03-04", "-60"))
		p.AppendTransaction(closing(t, "2024-03-05", "200"))
		engine := newEngine(t, p)

		start, end := window()
		m := engine.CalculatePerformanceMetrics(start, end)

		samples := []float64{150, -60, 200}
		mean := stat.Mean(samples, nil)
		stdDev := stat.StdDev(samples, nil)
		want := (mean - 0.02/252) / stdDev * math.Sqrt(252)
		assert.InDelta(t, want, m.SharpeRatio, 1e-9)
	})

	t.Run("sharpe is zero with fewer than two daily samples", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(closing(t, "2024-03-01", "100"))
		p.AppendTransaction(closing(t, "2024-03-01", "50"))
		engine := newEngine(t, p)

		start, end := window()
		m := engine.CalculatePerformanceMetrics(start, end)

		assert.Equal(t, 2, m.TotalTrades)
		assert.Zero(t, m.SharpeRatio)
	})

	t.Run("sharpe is zero with zero variance", func(t *testing.T) {
		p := models.NewPortfolio(models.DefaultPortfolioID)
		p.AppendTransaction(closing(t, "2024-03-01", "100"))
		p.AppendTransaction(closing(t, "2024-03-04", "100"))
		engine := newEngine(t, p)

		start, end := window()
		m := engine.CalculatePerformanceMetrics(start, end)

		assert.Zero(t, m.SharpeRatio)
	})
}

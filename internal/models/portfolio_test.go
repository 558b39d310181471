package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(t *testing.T, symbol string, pt PositionType, qty, price, beta, value string, sector string) *Position {
	t.Helper()
	return &Position{
		Symbol:       symbol,
		PositionType: pt,
		Quantity:     dec(t, qty),
		CostBasis:    dec(t, price),
		CurrentPrice: dec(t, value),
		Sector:       sector,
		Beta:         dec(t, beta),
		EntryDate:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestPortfolioPositions(t *testing.T) {
	p := NewPortfolio(DefaultPortfolioID)
	long := position(t, "AAPL", PositionTypeLong, "100", "150", "1.2", "160", "Technology")
	short := position(t, "AAPL", PositionTypeShort, "20", "165", "1.2", "160", "Technology")
	p.AddPosition(long)
	p.AddPosition(short)

	t.Run("find distinguishes direction for the same symbol", func(t *testing.T) {
		assert.Same(t, long, p.FindPosition("AAPL", PositionTypeLong))
		assert.Same(t, short, p.FindPosition("AAPL", PositionTypeShort))
		assert.Nil(t, p.FindPosition("MSFT", PositionTypeLong))
	})

	t.Run("remove drops only the matching direction", func(t *testing.T) {
		clone := p.Clone()
		assert.True(t, clone.RemovePosition("AAPL", PositionTypeShort))
		assert.Nil(t, clone.FindPosition("AAPL", PositionTypeShort))
		assert.NotNil(t, clone.FindPosition("AAPL", PositionTypeLong))
		assert.False(t, clone.RemovePosition("AAPL", PositionTypeShort))
	})
}

func TestAppendTransactionAssignsSequentialIDs(t *testing.T) {
	p := NewPortfolio(DefaultPortfolioID)
	for i := 0; i < 3; i++ {
		p.AppendTransaction(&Transaction{
			Symbol:          "AAPL",
			TransactionType: TransactionTypeBuy,
			Quantity:        dec(t, "1"),
			Price:           dec(t, "150"),
			Date:            time.Now().UTC(),
		})
	}
	assert.Equal(t, 1, p.Transactions[0].ID)
	assert.Equal(t, 2, p.Transactions[1].ID)
	assert.Equal(t, 3, p.Transactions[2].ID)

	// IDs continue from the highest existing ID, so loading a persisted
	// log and appending never reuses one
	p.Transactions = p.Transactions[1:]
	p.AppendTransaction(&Transaction{
		Symbol:          "AAPL",
		TransactionType: TransactionTypeBuy,
		Quantity:        dec(t, "1"),
		Price:           dec(t, "150"),
		Date:            time.Now().UTC(),
	})
	assert.Equal(t, 4, p.Transactions[len(p.Transactions)-1].ID)
}

func TestComputeMetadata(t *testing.T) {
	t.Run("empty portfolio has zeroed snapshot and undefined ratio", func(t *testing.T) {
		m := ComputeMetadata(nil, nil)
		assert.True(t, m.TotalLongValue.IsZero())
		assert.True(t, m.TotalShortValue.IsZero())
		assert.False(t, m.LongShortRatio.Valid)
		assert.Empty(t, m.SectorExposure.Long)
		assert.Empty(t, m.SectorExposure.Short)
		assert.False(t, m.LastUpdated.IsZero())
	})

	t.Run("aggregates values, counts and betas per direction", func(t *testing.T) {
		positions := []*Position{
			position(t, "AAPL", PositionTypeLong, "100", "150", "1.2", "160", "Technology"),  // 16000
			position(t, "XOM", PositionTypeLong, "50", "100", "0.8", "80", "Energy"),         // 4000
			position(t, "GME", PositionTypeShort, "100", "45", "1.6", "40", "Consumer"),      // 4000
			position(t, "BBBY", PositionTypeShort, "200", "6", "2", "5", "Consumer"),         // 1000
		}
		m := ComputeMetadata(positions, nil)

		assert.True(t, m.TotalLongValue.Equal(dec(t, "20000")))
		assert.True(t, m.TotalShortValue.Equal(dec(t, "5000")))
		assert.Equal(t, 2, m.LongPositionsCount)
		assert.Equal(t, 2, m.ShortPositionsCount)

		require.True(t, m.LongShortRatio.Valid)
		assert.True(t, m.LongShortRatio.Value.Equal(dec(t, "4")))

		// 16000/20000*1.2 + 4000/20000*0.8 = 0.96 + 0.16
		assert.True(t, m.WeightedLongBeta.Equal(dec(t, "1.12")))
		// 4000/5000*1.6 + 1000/5000*2 = 1.28 + 0.4
		assert.True(t, m.WeightedShortBeta.Equal(dec(t, "1.68")))

		assert.True(t, m.SectorExposure.Long["Technology"].Equal(dec(t, "80")))
		assert.True(t, m.SectorExposure.Long["Energy"].Equal(dec(t, "20")))
		assert.True(t, m.SectorExposure.Short["Consumer"].Equal(dec(t, "100")))
	})

	t.Run("realized gains sum only closing transactions", func(t *testing.T) {
		transactions := []*Transaction{
			{TransactionType: TransactionTypeBuy},
			{TransactionType: TransactionTypeSell, RealizedGain: decimal.NullDecimal{Decimal: dec(t, "250.50"), Valid: true}},
			{TransactionType: TransactionTypeCover, RealizedGain: decimal.NullDecimal{Decimal: dec(t, "-100"), Valid: true}},
		}
		m := ComputeMetadata(nil, transactions)
		assert.True(t, m.TotalRealizedGains.Equal(dec(t, "150.5")))
	})
}

func TestPortfolioClone(t *testing.T) {
	p := NewPortfolio(DefaultPortfolioID)
	p.AddPosition(position(t, "AAPL", PositionTypeLong, "100", "150", "1.2", "160", "Technology"))
	p.AppendTransaction(&Transaction{
		Symbol:          "AAPL",
		TransactionType: TransactionTypeBuy,
		Quantity:        dec(t, "100"),
		Price:           dec(t, "150"),
		Date:            time.Now().UTC(),
	})
	p.UpdateMetadata()

	clone := p.Clone()
	clone.Positions[0].Quantity = dec(t, "999")
	clone.Transactions[0].Symbol = "MSFT"
	clone.Metadata.SectorExposure.Long["Technology"] = dec(t, "0")

	assert.True(t, p.Positions[0].Quantity.Equal(dec(t, "100")))
	assert.Equal(t, "AAPL", p.Transactions[0].Symbol)
	assert.True(t, p.Metadata.SectorExposure.Long["Technology"].Equal(dec(t, "100")))
}

func TestRatioJSON(t *testing.T) {
	t.Run("undefined marshals as the N/A sentinel", func(t *testing.T) {
		data, err := json.Marshal(UndefinedRatio())
		require.NoError(t, err)
		assert.Equal(t, `"N/A"`, string(data))
	})

	t.Run("defined marshals as a quoted number", func(t *testing.T) {
		data, err := json.Marshal(DefinedRatio(dec(t, "2.5")))
		require.NoError(t, err)
		assert.Equal(t, `"2.5"`, string(data))
	})

	t.Run("round trips all accepted encodings", func(t *testing.T) {
		for _, raw := range []string{`"N/A"`, `null`} {
			var r Ratio
			require.NoError(t, json.Unmarshal([]byte(raw), &r), raw)
			assert.False(t, r.Valid, raw)
		}
		for _, raw := range []string{`"2.5"`, `2.5`} {
			var r Ratio
			require.NoError(t, json.Unmarshal([]byte(raw), &r), raw)
			require.True(t, r.Valid, raw)
			assert.True(t, r.Value.Equal(dec(t, "2.5")), raw)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		var r Ratio
		assert.Error(t, json.Unmarshal([]byte(`"abc"`), &r))
	})
}

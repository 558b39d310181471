package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPortfolioID identifies the single logical portfolio
const DefaultPortfolioID = "default"

var oneHundred = decimal.NewFromInt(100)

// SectorExposure holds per-direction sector percentages. A direction with
// no value carries an empty map.
type SectorExposure struct {
	Long  map[string]decimal.Decimal `json:"long"`
	Short map[string]decimal.Decimal `json:"short"`
}

// Metadata is a derived snapshot over positions and transactions. It is
// recomputed in full after every mutation and is never the source of truth.
type Metadata struct {
	TotalLongValue      decimal.Decimal `json:"total_long_value"`
	TotalShortValue     decimal.Decimal `json:"total_short_value"`
	LongShortRatio      Ratio           `json:"long_short_ratio"`
	TotalRealizedGains  decimal.Decimal `json:"total_realized_gains"`
	SectorExposure      SectorExposure  `json:"sector_exposure"`
	LongPositionsCount  int             `json:"long_positions_count"`
	ShortPositionsCount int             `json:"short_positions_count"`
	WeightedLongBeta    decimal.Decimal `json:"weighted_long_beta"`
	WeightedShortBeta   decimal.Decimal `json:"weighted_short_beta"`
	LastUpdated         time.Time       `json:"last_updated"`
}

// Portfolio aggregates the current positions and the full transaction log
// for one logical portfolio.
type Portfolio struct {
	ID           string         `json:"id"`
	Positions    []*Position    `json:"positions"`
	Transactions []*Transaction `json:"transactions"`
	Metadata     Metadata       `json:"metadata"`
}

// NewPortfolio returns an empty portfolio with freshly computed metadata
func NewPortfolio(id string) *Portfolio {
	p := &Portfolio{ID: id}
	p.UpdateMetadata()
	return p
}

// FindPosition returns the position for (symbol, positionType), or nil
func (p *Portfolio) FindPosition(symbol string, positionType PositionType) *Position {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol && pos.PositionType == positionType {
			return pos
		}
	}
	return nil
}

// AddPosition appends a new position to the aggregate
func (p *Portfolio) AddPosition(pos *Position) {
	p.Positions = append(p.Positions, pos)
}

// RemovePosition drops the position for (symbol, positionType). Returns
// true when a position was removed.
func (p *Portfolio) RemovePosition(symbol string, positionType PositionType) bool {
	for i, pos := range p.Positions {
		if pos.Symbol == symbol && pos.PositionType == positionType {
			p.Positions = append(p.Positions[:i], p.Positions[i+1:]...)
			return true
		}
	}
	return false
}

// AppendTransaction assigns the next sequential ID and appends the record
func (p *Portfolio) AppendTransaction(t *Transaction) {
	t.ID = p.nextTransactionID()
	p.Transactions = append(p.Transactions, t)
}

func (p *Portfolio) nextTransactionID() int {
	max := 0
	for _, t := range p.Transactions {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

// TotalRealizedGains sums realized gain over all sell/cover transactions
func (p *Portfolio) TotalRealizedGains() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.Transactions {
		if t.RealizedGain.Valid {
			total = total.Add(t.RealizedGain.Decimal)
		}
	}
	return total
}

// UpdateMetadata recomputes the derived snapshot from current positions
// and transactions
func (p *Portfolio) UpdateMetadata() {
	p.Metadata = ComputeMetadata(p.Positions, p.Transactions)
}

// ComputeMetadata derives a Metadata snapshot purely from positions and
// transactions. It holds no state of its own so stored and derived
// metadata cannot drift.
func ComputeMetadata(positions []*Position, transactions []*Transaction) Metadata {
	m := Metadata{
		TotalLongValue:     decimal.Zero,
		TotalShortValue:    decimal.Zero,
		LongShortRatio:     UndefinedRatio(),
		TotalRealizedGains: decimal.Zero,
		WeightedLongBeta:   decimal.Zero,
		WeightedShortBeta:  decimal.Zero,
		SectorExposure: SectorExposure{
			Long:  map[string]decimal.Decimal{},
			Short: map[string]decimal.Decimal{},
		},
		LastUpdated: time.Now().UTC(),
	}

	for _, pos := range positions {
		switch pos.PositionType {
		case PositionTypeLong:
			m.TotalLongValue = m.TotalLongValue.Add(pos.Value())
			m.LongPositionsCount++
		case PositionTypeShort:
			m.TotalShortValue = m.TotalShortValue.Add(pos.Value())
			m.ShortPositionsCount++
		}
	}

	if m.TotalShortValue.IsPositive() {
		m.LongShortRatio = DefinedRatio(m.TotalLongValue.Div(m.TotalShortValue))
	}

	m.SectorExposure.Long = sectorExposure(positions, PositionTypeLong, m.TotalLongValue)
	m.SectorExposure.Short = sectorExposure(positions, PositionTypeShort, m.TotalShortValue)
	m.WeightedLongBeta = weightedBeta(positions, PositionTypeLong, m.TotalLongValue)
	m.WeightedShortBeta = weightedBeta(positions, PositionTypeShort, m.TotalShortValue)

	for _, t := range transactions {
		if t.RealizedGain.Valid {
			m.TotalRealizedGains = m.TotalRealizedGains.Add(t.RealizedGain.Decimal)
		}
	}

	return m
}

func sectorExposure(positions []*Position, direction PositionType, total decimal.Decimal) map[string]decimal.Decimal {
	exposure := map[string]decimal.Decimal{}
	if !total.IsPositive() {
		return exposure
	}
	for _, pos := range positions {
		if pos.PositionType != direction {
			continue
		}
		pct := pos.Value().Div(total).Mul(oneHundred)
		exposure[pos.Sector] = exposure[pos.Sector].Add(pct)
	}
	return exposure
}

func weightedBeta(positions []*Position, direction PositionType, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	beta := decimal.Zero
	for _, pos := range positions {
		if pos.PositionType == direction {
			beta = beta.Add(pos.WeightedBeta(total))
		}
	}
	return beta
}

// Clone returns a deep copy of the aggregate. Ledger mutations are applied
// to a clone and swapped in only after a successful save.
func (p *Portfolio) Clone() *Portfolio {
	clone := &Portfolio{
		ID:           p.ID,
		Positions:    make([]*Position, len(p.Positions)),
		Transactions: make([]*Transaction, len(p.Transactions)),
		Metadata:     p.Metadata.clone(),
	}
	for i, pos := range p.Positions {
		cp := *pos
		clone.Positions[i] = &cp
	}
	for i, t := range p.Transactions {
		ct := *t
		clone.Transactions[i] = &ct
	}
	return clone
}

func (m Metadata) clone() Metadata {
	c := m
	c.SectorExposure = SectorExposure{
		Long:  make(map[string]decimal.Decimal, len(m.SectorExposure.Long)),
		Short: make(map[string]decimal.Decimal, len(m.SectorExposure.Short)),
	}
	for k, v := range m.SectorExposure.Long {
		c.SectorExposure.Long[k] = v
	}
	for k, v := range m.SectorExposure.Short {
		c.SectorExposure.Short[k] = v
	}
	return c
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionType is the direction of a holding
type PositionType string

const (
	PositionTypeLong  PositionType = "long"
	PositionTypeShort PositionType = "short"
)

// Valid reports whether the position type is a known direction
func (pt PositionType) Valid() bool {
	return pt == PositionTypeLong || pt == PositionTypeShort
}

// Beta bounds accepted from the quote provider
var (
	betaMin = decimal.NewFromInt(-1)
	betaMax = decimal.NewFromInt(5)
)

// Position represents a single long or short holding in one symbol.
// At most one Position exists per (symbol, position_type) pair.
type Position struct {
	Symbol       string          `json:"symbol"`
	PositionType PositionType    `json:"position_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Sector       string          `json:"sector"`
	Industry     string          `json:"industry"`
	Beta         decimal.Decimal `json:"beta"`
	EntryDate    time.Time       `json:"entry_date"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Validate checks position invariants
func (p *Position) Validate() error {
	if p.Symbol == "" {
		return &InvalidInputError{Field: "symbol", Reason: "must be non-empty"}
	}
	if !p.PositionType.Valid() {
		return &InvalidInputError{Field: "position_type", Reason: "must be long or short", Value: string(p.PositionType)}
	}
	if !p.Quantity.IsPositive() {
		return &InvalidInputError{Field: "quantity", Reason: "must be positive", Value: p.Quantity.String()}
	}
	if !p.CostBasis.IsPositive() {
		return &InvalidInputError{Field: "cost_basis", Reason: "must be positive", Value: p.CostBasis.String()}
	}
	if !p.CurrentPrice.IsPositive() {
		return &InvalidInputError{Field: "current_price", Reason: "must be positive", Value: p.CurrentPrice.String()}
	}
	if p.Beta.LessThan(betaMin) || p.Beta.GreaterThan(betaMax) {
		return &InvalidInputError{Field: "beta", Reason: "must be within [-1, 5]", Value: p.Beta.String()}
	}
	return nil
}

// Value returns the unsigned market value of the position
func (p *Position) Value() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice).Abs()
}

// directionMultiplier is -1 for shorts: a falling price is a gain
func (p *Position) directionMultiplier() decimal.Decimal {
	if p.PositionType == PositionTypeShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// UnrealizedGain returns the mark-to-market gain against cost basis
func (p *Position) UnrealizedGain() decimal.Decimal {
	return p.CurrentPrice.Sub(p.CostBasis).Mul(p.Quantity).Mul(p.directionMultiplier())
}

// PercentChange returns the percent move against cost basis, direction-adjusted
func (p *Position) PercentChange() decimal.Decimal {
	if p.CostBasis.IsZero() {
		return decimal.Zero
	}
	return p.CurrentPrice.Sub(p.CostBasis).
		Div(p.CostBasis).
		Mul(decimal.NewFromInt(100)).
		Mul(p.directionMultiplier())
}

// WeightedBeta returns this position's beta weighted by its share of
// directionTotal
func (p *Position) WeightedBeta(directionTotal decimal.Decimal) decimal.Decimal {
	if directionTotal.IsZero() {
		return decimal.Zero
	}
	return p.Value().Div(directionTotal).Mul(p.Beta)
}

// UpdatePrice sets a fresh market price without touching quantity or basis
func (p *Position) UpdatePrice(price decimal.Decimal, at time.Time) error {
	if !price.IsPositive() {
		return &InvalidInputError{Field: "price", Reason: "must be positive", Value: price.String()}
	}
	p.CurrentPrice = price
	p.LastUpdated = at
	return nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of trade event recorded in the ledger
type TransactionType string

const (
	TransactionTypeBuy   TransactionType = "buy"
	TransactionTypeSell  TransactionType = "sell"
	TransactionTypeShort TransactionType = "short"
	TransactionTypeCover TransactionType = "cover"
)

// Valid reports whether the transaction type is recognized
func (tt TransactionType) Valid() bool {
	switch tt {
	case TransactionTypeBuy, TransactionTypeSell, TransactionTypeShort, TransactionTypeCover:
		return true
	}
	return false
}

// Closing reports whether this type realizes a gain (sell or cover)
func (tt TransactionType) Closing() bool {
	return tt == TransactionTypeSell || tt == TransactionTypeCover
}

// Transaction is an immutable record of one trade event. IDs are sequential
// and assigned by the portfolio aggregate on append. RealizedGain is set
// only for sell and cover transactions.
type Transaction struct {
	ID              int                 `json:"id"`
	Symbol          string              `json:"symbol"`
	TransactionType TransactionType     `json:"transaction_type"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Price           decimal.Decimal     `json:"price"`
	Date            time.Time           `json:"date"`
	RealizedGain    decimal.NullDecimal `json:"realized_gain"`
}

// Validate checks transaction invariants
func (t *Transaction) Validate() error {
	if t.Symbol == "" {
		return &InvalidInputError{Field: "symbol", Reason: "must be non-empty"}
	}
	if !t.TransactionType.Valid() {
		return &InvalidInputError{Field: "transaction_type", Reason: "must be buy, sell, short or cover", Value: string(t.TransactionType)}
	}
	if !t.Quantity.IsPositive() {
		return &InvalidInputError{Field: "quantity", Reason: "must be positive", Value: t.Quantity.String()}
	}
	if !t.Price.IsPositive() {
		return &InvalidInputError{Field: "price", Reason: "must be positive", Value: t.Price.String()}
	}
	if t.Date.IsZero() {
		return &InvalidInputError{Field: "date", Reason: "must be set"}
	}
	return nil
}

// TotalValue returns quantity x price
func (t *Transaction) TotalValue() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

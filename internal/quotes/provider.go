package quotes

import (
	"context"

	"github.com/shopspring/decimal"
)

// StockInfo is the point-in-time quote data the ledger needs to price and
// classify a position. Sector and industry default to "Unknown" when the
// provider has no classification for the symbol.
type StockInfo struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Sector   string          `json:"sector"`
	Industry string          `json:"industry"`
	Price    decimal.Decimal `json:"price"`
	Beta     decimal.Decimal `json:"beta"`
}

// Provider supplies stock quotes and classification data. GetStockInfo
// fails on unknown symbols or network errors. GetBatchQuotes may return a
// subset of the requested symbols; a missing symbol is not an error.
type Provider interface {
	GetStockInfo(ctx context.Context, symbol string) (*StockInfo, error)
	GetBatchQuotes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

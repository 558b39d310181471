package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// InsufficientSharesError reports a sell or cover that exceeds the held
// quantity. The position and transaction log are left unchanged.
type InsufficientSharesError struct {
	Symbol       string
	PositionType models.PositionType
	Requested    decimal.Decimal
	Held         decimal.Decimal
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for %s %s position: have %s, requested %s",
		e.Symbol, e.PositionType, e.Held, e.Requested)
}

// PositionNotFoundError reports a sell/cover against a symbol with no
// matching open position.
type PositionNotFoundError struct {
	Symbol       string
	PositionType models.PositionType
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("no %s position found for %s", e.PositionType, e.Symbol)
}

// QuoteUnavailableError reports a quote provider failure. Fatal for buy
// and short, which cannot price a position without a fresh quote.
type QuoteUnavailableError struct {
	Symbol string
	Err    error
}

func (e *QuoteUnavailableError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("quote provider unavailable: %v", e.Err)
	}
	return fmt.Sprintf("quote unavailable for %s: %v", e.Symbol, e.Err)
}

func (e *QuoteUnavailableError) Unwrap() error { return e.Err }

// PartialQuoteError reports a bulk refresh where the provider returned
// quotes for only some of the requested symbols. The updates that did
// arrive have already been applied; callers treat this as informational.
type PartialQuoteError struct {
	Requested int
	Updated   int
}

func (e *PartialQuoteError) Error() string {
	return fmt.Sprintf("partial quote refresh: updated %d of %d symbols", e.Updated, e.Requested)
}

// PersistenceError reports a failed save or load. The in-memory aggregate
// is rolled back so memory and disk never silently diverge.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jtcarver/portfolio-ledger/internal/models"
	"github.com/jtcarver/portfolio-ledger/internal/quotes"
	"github.com/jtcarver/portfolio-ledger/internal/storage"
)

// EventPublisher receives notifications after successful mutations.
// Publish failures never fail the trade.
type EventPublisher interface {
	PublishTransaction(ctx context.Context, t *models.Transaction) error
	PublishPricesRefreshed(ctx context.Context, updated, requested int) error
}

// RefreshResult reports the outcome of a bulk price refresh
type RefreshResult struct {
	Requested int `json:"requested"`
	Updated   int `json:"updated"`
}

// Ledger owns the portfolio aggregate and serializes all trade execution
// against it. Mutations run against a clone of the aggregate which is
// swapped in only after a successful save, so a persistence failure
// leaves memory and disk consistent.
type Ledger struct {
	mu        sync.RWMutex
	portfolio *models.Portfolio
	store     storage.Store
	quotes    quotes.Provider
	events    EventPublisher
	log       zerolog.Logger
}

// New loads the persisted portfolio and returns a ledger over it.
// events may be nil.
func New(store storage.Store, provider quotes.Provider, events EventPublisher, log zerolog.Logger) (*Ledger, error) {
	p, err := store.Load()
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	p.UpdateMetadata()

	return &Ledger{
		portfolio: p,
		store:     store,
		quotes:    provider,
		events:    events,
		log:       log.With().Str("component", "ledger").Logger(),
	}, nil
}

// Snapshot returns a deep copy of the current aggregate, safe to read
// concurrently with trade execution.
func (l *Ledger) Snapshot() *models.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.portfolio.Clone()
}

// ExecuteBuy opens or adds to a long position. Adding re-averages the
// cost basis. A fresh quote is required; provider failure is fatal to
// the call.
func (l *Ledger) ExecuteBuy(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
	return l.executeOpen(ctx, symbol, quantity, price, date, models.PositionTypeLong, models.TransactionTypeBuy)
}

// ExecuteShort opens or adds to a short position, averaging the price
// received per unit the same way a buy averages the price paid.
func (l *Ledger) ExecuteShort(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
	return l.executeOpen(ctx, symbol, quantity, price, date, models.PositionTypeShort, models.TransactionTypeShort)
}

// ExecuteSell reduces or closes a long position, realizing
// (price - cost_basis) x quantity. Cost basis is unchanged on a partial
// sell (average-cost method). Returns a nil position when fully closed.
func (l *Ledger) ExecuteSell(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
	return l.executeClose(ctx, symbol, quantity, price, date, models.PositionTypeLong, models.TransactionTypeSell)
}

// ExecuteCover reduces or closes a short position. The realized gain is
// inverted: (cost_basis - price) x quantity, a gain when the cover price
// is below the original short price.
func (l *Ledger) ExecuteCover(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
	return l.executeClose(ctx, symbol, quantity, price, date, models.PositionTypeShort, models.TransactionTypeCover)
}

func (l *Ledger) executeOpen(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time, positionType models.PositionType, txType models.TransactionType) (*models.Position, *models.Transaction, error) {
	symbol, quantity, price, date, err := normalizeTrade(symbol, quantity, price, date)
	if err != nil {
		return nil, nil, err
	}

	// Quote fetch happens before taking the lock: it is a network call
	// and its failure aborts the trade anyway.
	info, err := l.quotes.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, nil, &QuoteUnavailableError{Symbol: symbol, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clone := l.portfolio.Clone()
	now := time.Now().UTC()

	pos := clone.FindPosition(symbol, positionType)
	if pos != nil {
		newQuantity := pos.Quantity.Add(quantity)
		totalCost := pos.Quantity.Mul(pos.CostBasis).Add(quantity.Mul(price))
		pos.CostBasis = totalCost.Div(newQuantity)
		pos.Quantity = newQuantity
		pos.CurrentPrice = info.Price
		pos.LastUpdated = now
	} else {
		pos = &models.Position{
			Symbol:       symbol,
			PositionType: positionType,
			Quantity:     quantity,
			CostBasis:    price,
			CurrentPrice: info.Price,
			Sector:       info.Sector,
			Industry:     info.Industry,
			Beta:         info.Beta,
			EntryDate:    date,
			LastUpdated:  now,
		}
		if err := pos.Validate(); err != nil {
			return nil, nil, err
		}
		clone.AddPosition(pos)
	}

	txn := &models.Transaction{
		Symbol:          symbol,
		TransactionType: txType,
		Quantity:        quantity,
		Price:           price,
		Date:            date,
	}
	clone.AppendTransaction(txn)
	clone.UpdateMetadata()

	if err := l.commit(ctx, clone, txn); err != nil {
		return nil, nil, err
	}

	l.log.Info().
		Str("symbol", symbol).
		Str("type", string(txType)).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Str("cost_basis", pos.CostBasis.String()).
		Msg("Trade executed")

	return pos, txn, nil
}

func (l *Ledger) executeClose(ctx context.Context, symbol string, quantity, price decimal.Decimal, date time.Time, positionType models.PositionType, txType models.TransactionType) (*models.Position, *models.Transaction, error) {
	symbol, quantity, price, date, err := normalizeTrade(symbol, quantity, price, date)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clone := l.portfolio.Clone()

	pos := clone.FindPosition(symbol, positionType)
	if pos == nil {
		return nil, nil, &PositionNotFoundError{Symbol: symbol, PositionType: positionType}
	}
	if quantity.GreaterThan(pos.Quantity) {
		return nil, nil, &InsufficientSharesError{
			Symbol:       symbol,
			PositionType: positionType,
			Requested:    quantity,
			Held:         pos.Quantity,
		}
	}

	var realizedGain decimal.Decimal
	if txType == models.TransactionTypeCover {
		realizedGain = pos.CostBasis.Sub(price).Mul(quantity)
	} else {
		realizedGain = price.Sub(pos.CostBasis).Mul(quantity)
	}

	if quantity.Equal(pos.Quantity) {
		clone.RemovePosition(symbol, positionType)
		pos = nil
	} else {
		pos.Quantity = pos.Quantity.Sub(quantity)
		pos.LastUpdated = time.Now().UTC()
	}

	txn := &models.Transaction{
		Symbol:          symbol,
		TransactionType: txType,
		Quantity:        quantity,
		Price:           price,
		Date:            date,
		RealizedGain:    decimal.NullDecimal{Decimal: realizedGain, Valid: true},
	}
	clone.AppendTransaction(txn)
	clone.UpdateMetadata()

	if err := l.commit(ctx, clone, txn); err != nil {
		return nil, nil, err
	}

	l.log.Info().
		Str("symbol", symbol).
		Str("type", string(txType)).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Str("realized_gain", realizedGain.String()).
		Msg("Trade executed")

	return pos, txn, nil
}

// RefreshPrices requests one batched quote lookup for every held symbol
// and applies the returned prices in a single critical section. Symbols
// absent from the batch result keep their previous price and timestamp.
// A partial result is reported via PartialQuoteError after the available
// updates have been applied.
func (l *Ledger) RefreshPrices(ctx context.Context) (*RefreshResult, error) {
	l.mu.RLock()
	seen := map[string]bool{}
	var symbols []string
	for _, pos := range l.portfolio.Positions {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			symbols = append(symbols, pos.Symbol)
		}
	}
	l.mu.RUnlock()

	if len(symbols) == 0 {
		return &RefreshResult{}, nil
	}

	// Network call runs outside the lock so trades are not blocked on
	// the provider.
	prices, err := l.quotes.GetBatchQuotes(ctx, symbols)
	if err != nil {
		return nil, &QuoteUnavailableError{Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clone := l.portfolio.Clone()
	now := time.Now().UTC()

	updated := map[string]bool{}
	for _, pos := range clone.Positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		if err := pos.UpdatePrice(price, now); err != nil {
			l.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("Skipping bad refresh price")
			continue
		}
		updated[pos.Symbol] = true
	}
	clone.UpdateMetadata()

	if err := l.store.Save(clone); err != nil {
		return nil, &PersistenceError{Op: "refresh", Err: err}
	}
	l.portfolio = clone

	result := &RefreshResult{Requested: len(symbols), Updated: len(updated)}

	if l.events != nil {
		if err := l.events.PublishPricesRefreshed(ctx, result.Updated, result.Requested); err != nil {
			l.log.Warn().Err(err).Msg("Failed to publish refresh event")
		}
	}

	l.log.Info().
		Int("requested", result.Requested).
		Int("updated", result.Updated).
		Msg("Prices refreshed")

	if result.Updated < result.Requested {
		return result, &PartialQuoteError{Requested: result.Requested, Updated: result.Updated}
	}
	return result, nil
}

// commit saves the mutated clone and swaps it in. Must hold l.mu.
func (l *Ledger) commit(ctx context.Context, clone *models.Portfolio, txn *models.Transaction) error {
	if err := l.store.Save(clone); err != nil {
		return &PersistenceError{Op: string(txn.TransactionType), Err: err}
	}
	l.portfolio = clone

	if l.events != nil {
		if err := l.events.PublishTransaction(ctx, txn); err != nil {
			l.log.Warn().Err(err).Int("transaction_id", txn.ID).Msg("Failed to publish transaction event")
		}
	}
	return nil
}

func normalizeTrade(symbol string, quantity, price decimal.Decimal, date time.Time) (string, decimal.Decimal, decimal.Decimal, time.Time, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", quantity, price, date, &models.InvalidInputError{Field: "symbol", Reason: "must be non-empty"}
	}
	if !quantity.IsPositive() {
		return "", quantity, price, date, &models.InvalidInputError{Field: "quantity", Reason: "must be positive", Value: quantity.String()}
	}
	if !price.IsPositive() {
		return "", quantity, price, date, &models.InvalidInputError{Field: "price", Reason: "must be positive", Value: price.String()}
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return symbol, quantity, price, date, nil
}

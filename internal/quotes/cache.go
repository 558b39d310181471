package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Cache TTLs per data kind. Company classification moves slowly, prices
// do not.
const (
	infoTTL  = 24 * time.Hour
	priceTTL = time.Minute
)

// CachedProvider is a read-through Redis cache in front of another
// Provider. A Redis outage degrades to uncached reads, never to a quote
// failure.
type CachedProvider struct {
	inner Provider
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewCachedProvider wraps inner with a Redis-backed cache
func NewCachedProvider(inner Provider, rdb *redis.Client, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		rdb:   rdb,
		log:   log.With().Str("component", "quote_cache").Logger(),
	}
}

func infoKey(symbol string) string  { return "quotes:info:" + strings.ToUpper(symbol) }
func priceKey(symbol string) string { return "quotes:price:" + strings.ToUpper(symbol) }

// GetStockInfo serves from cache when possible, falling through to the
// inner provider on miss or Redis error.
func (c *CachedProvider) GetStockInfo(ctx context.Context, symbol string) (*StockInfo, error) {
	key := infoKey(symbol)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var info StockInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return &info, nil
		}
		c.log.Warn().Str("key", key).Msg("Dropping undecodable cache entry")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}

	info, err := c.inner.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.rdb.Set(ctx, key, data, infoTTL).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return info, nil
}

// GetBatchQuotes serves cached prices and fetches only the symbols not in
// cache. Symbols the inner provider omits stay absent from the result.
func (c *CachedProvider) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	var missing []string

	for _, symbol := range symbols {
		data, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
		if err != nil {
			if err != redis.Nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
			}
			missing = append(missing, symbol)
			continue
		}
		price, err := decimal.NewFromString(data)
		if err != nil {
			missing = append(missing, symbol)
			continue
		}
		prices[strings.ToUpper(symbol)] = price
	}

	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := c.inner.GetBatchQuotes(ctx, missing)
	if err != nil {
		if len(prices) == 0 {
			return nil, err
		}
		// Some symbols were served from cache; treat the rest as absent
		c.log.Warn().Err(err).Int("cached", len(prices)).Msg("Batch quote fetch failed, serving cached subset")
		return prices, nil
	}

	for symbol, price := range fetched {
		prices[symbol] = price
		if err := c.rdb.Set(ctx, priceKey(symbol), price.String(), priceTTL).Err(); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache write failed")
		}
	}
	return prices, nil
}

// Invalidate removes all cached entries for a symbol
func (c *CachedProvider) Invalidate(ctx context.Context, symbol string) error {
	if err := c.rdb.Del(ctx, infoKey(symbol), priceKey(symbol)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", symbol, err)
	}
	return nil
}

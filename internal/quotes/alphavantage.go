package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// DefaultBeta is assumed when the provider has no beta for a symbol
var DefaultBeta = decimal.NewFromInt(1)

// AlphaVantageClient fetches quotes and company overviews from the
// Alpha Vantage API.
type AlphaVantageClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewAlphaVantageClient creates a client with the given API key. An empty
// baseURL selects the public endpoint.
func NewAlphaVantageClient(apiKey, baseURL string, log zerolog.Logger) *AlphaVantageClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &AlphaVantageClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "alphavantage").Logger(),
	}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

type overviewResponse struct {
	Name     string `json:"Name"`
	Sector   string `json:"Sector"`
	Industry string `json:"Industry"`
	Beta     string `json:"Beta"`
}

type bulkQuotesResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		Close  string `json:"close"`
	} `json:"data"`
}

// GetStockInfo fetches the current price plus sector/industry/beta for one
// symbol. It fails when the symbol is unknown or the API is unreachable.
func (c *AlphaVantageClient) GetStockInfo(ctx context.Context, symbol string) (*StockInfo, error) {
	symbol = strings.ToUpper(symbol)

	var quote globalQuoteResponse
	if err := c.get(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}, &quote); err != nil {
		return nil, err
	}
	if quote.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}
	price, err := decimal.NewFromString(quote.GlobalQuote.Price)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("invalid price %q for %s", quote.GlobalQuote.Price, symbol)
	}

	info := &StockInfo{
		Symbol:   symbol,
		Name:     "Unknown",
		Sector:   "Unknown",
		Industry: "Unknown",
		Price:    price,
		Beta:     DefaultBeta,
	}

	// Classification is best-effort: a missing overview leaves the
	// Unknown defaults but the quote itself still succeeds.
	var overview overviewResponse
	if err := c.get(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {symbol}}, &overview); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Company overview unavailable")
		return info, nil
	}
	if overview.Name != "" {
		info.Name = overview.Name
	}
	if overview.Sector != "" {
		info.Sector = overview.Sector
	}
	if overview.Industry != "" {
		info.Industry = overview.Industry
	}
	if overview.Beta != "" {
		if beta, err := decimal.NewFromString(overview.Beta); err == nil {
			info.Beta = beta
		}
	}
	return info, nil
}

// GetBatchQuotes fetches current prices for multiple symbols in one call.
// Symbols absent from the response are omitted from the result map.
func (c *AlphaVantageClient) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	var bulk bulkQuotesResponse
	params := url.Values{
		"function": {"REALTIME_BULK_QUOTES"},
		"symbol":   {strings.Join(upper, ",")},
	}
	if err := c.get(ctx, params, &bulk); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(bulk.Data))
	for _, q := range bulk.Data {
		price, err := decimal.NewFromString(q.Close)
		if err != nil || !price.IsPositive() {
			c.log.Warn().Str("symbol", q.Symbol).Str("close", q.Close).Msg("Skipping unparseable bulk quote")
			continue
		}
		prices[strings.ToUpper(q.Symbol)] = price
	}
	return prices, nil
}

func (c *AlphaVantageClient) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("alpha vantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	// The API reports errors inside a 200 body
	var probe struct {
		ErrorMessage string `json:"Error Message"`
	}
	body := json.NewDecoder(resp.Body)
	raw := json.RawMessage{}
	if err := body.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ErrorMessage != "" {
		return fmt.Errorf("alpha vantage error: %s", probe.ErrorMessage)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

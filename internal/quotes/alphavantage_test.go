package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// fakeAPI serves canned responses keyed by the function query parameter
func fakeAPI(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn := r.URL.Query().Get("function")
		body, ok := responses[fn]
		if !ok {
			t.Errorf("unexpected function %q", fn)
			http.Error(w, "unexpected function", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestGetStockInfo(t *testing.T) {
	t.Run("combines quote and overview", func(t *testing.T) {
		server := fakeAPI(t, map[string]string{
			"GLOBAL_QUOTE": `{"Global Quote": {"01. symbol": "AAPL", "05. price": "178.7200"}}`,
			"OVERVIEW":     `{"Name": "Apple Inc", "Sector": "TECHNOLOGY", "Industry": "ELECTRONIC COMPUTERS", "Beta": "1.286"}`,
		})
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		info, err := client.GetStockInfo(context.Background(), "aapl")
		require.NoError(t, err)

		assert.Equal(t, "AAPL", info.Symbol)
		assert.Equal(t, "Apple Inc", info.Name)
		assert.Equal(t, "TECHNOLOGY", info.Sector)
		assert.Equal(t, "ELECTRONIC COMPUTERS", info.Industry)
		assert.True(t, info.Price.Equal(dec(t, "178.72")))
		assert.True(t, info.Beta.Equal(dec(t, "1.286")))
	})

	t.Run("missing overview falls back to Unknown defaults", func(t *testing.T) {
		server := fakeAPI(t, map[string]string{
			"GLOBAL_QUOTE": `{"Global Quote": {"01. symbol": "XYZ", "05. price": "10.50"}}`,
			"OVERVIEW":     `{}`,
		})
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		info, err := client.GetStockInfo(context.Background(), "XYZ")
		require.NoError(t, err)

		assert.Equal(t, "Unknown", info.Sector)
		assert.Equal(t, "Unknown", info.Industry)
		assert.True(t, info.Beta.Equal(DefaultBeta))
	})

	t.Run("empty quote fails", func(t *testing.T) {
		server := fakeAPI(t, map[string]string{
			"GLOBAL_QUOTE": `{"Global Quote": {}}`,
		})
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		_, err := client.GetStockInfo(context.Background(), "NOPE")
		assert.Error(t, err)
	})

	t.Run("error payload inside a 200 body fails", func(t *testing.T) {
		server := fakeAPI(t, map[string]string{
			"GLOBAL_QUOTE": `{"Error Message": "Invalid API call."}`,
		})
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		_, err := client.GetStockInfo(context.Background(), "AAPL")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid API call")
	})

	t.Run("non-200 status fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		_, err := client.GetStockInfo(context.Background(), "AAPL")
		assert.Error(t, err)
	})
}

func TestGetBatchQuotes(t *testing.T) {
	t.Run("returns prices for returned symbols only", func(t *testing.T) {
		server := fakeAPI(t, map[string]string{
			"REALTIME_BULK_QUOTES": `{"data": [
				{"symbol": "AAPL", "close": "178.72"},
				{"symbol": "MSFT", "close": "405.10"},
				{"symbol": "BAD", "close": "not-a-number"}
			]}`,
		})
		defer server.Close()

		client := NewAlphaVantageClient("test-key", server.URL, zerolog.Nop())
		prices, err := client.GetBatchQuotes(context.Background(), []string{"aapl", "msft", "bad", "GONE"})
		require.NoError(t, err)

		// BAD is skipped, GONE was simply not returned
		require.Len(t, prices, 2)
		assert.True(t, prices["AAPL"].Equal(dec(t, "178.72")))
		assert.True(t, prices["MSFT"].Equal(dec(t, "405.1")))
	})

	t.Run("empty symbol list short-circuits", func(t *testing.T) {
		client := NewAlphaVantageClient("test-key", "http://127.0.0.1:1", zerolog.Nop())
		prices, err := client.GetBatchQuotes(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, prices)
	})
}

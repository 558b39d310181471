package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jtcarver/portfolio-ledger/internal/analytics"
	"github.com/jtcarver/portfolio-ledger/internal/ledger"
	"github.com/jtcarver/portfolio-ledger/internal/models"
)

const dateLayout = "2006-01-02"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ledger    *ledger.Ledger
	analytics *analytics.Engine
	log       zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(l *ledger.Ledger, a *analytics.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:    l,
		analytics: a,
		log:       log.With().Str("component", "api").Logger(),
	}
}

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Date     string `json:"date,omitempty"`
}

func (r *tradeRequest) parse() (string, decimal.Decimal, decimal.Decimal, time.Time, error) {
	quantity, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return "", decimal.Zero, decimal.Zero, time.Time{},
			&models.InvalidInputError{Field: "quantity", Value: r.Quantity, Reason: "not a decimal"}
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return "", decimal.Zero, decimal.Zero, time.Time{},
			&models.InvalidInputError{Field: "price", Value: r.Price, Reason: "not a decimal"}
	}
	var date time.Time
	if r.Date != "" {
		date, err = time.Parse(dateLayout, r.Date)
		if err != nil {
			return "", decimal.Zero, decimal.Zero, time.Time{},
				&models.InvalidInputError{Field: "date", Value: r.Date, Reason: "expected YYYY-MM-DD"}
		}
	}
	return r.Symbol, quantity, price, date, nil
}

type tradeFunc func(r *http.Request, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error)

func (h *Handler) executeTrade(w http.ResponseWriter, r *http.Request, execute tradeFunc) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbol, quantity, price, date, err := req.parse()
	if err != nil {
		h.respondError(w, err)
		return
	}

	position, transaction, err := execute(r, symbol, quantity, price, date)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"transaction": transactionView(transaction),
	}
	if position != nil {
		resp["position"] = positionView(position)
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Buy handles POST /portfolio/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.executeTrade(w, r, func(r *http.Request, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
		return h.ledger.ExecuteBuy(r.Context(), symbol, quantity, price, date)
	})
}

// Sell handles POST /portfolio/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.executeTrade(w, r, func(r *http.Request, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
		return h.ledger.ExecuteSell(r.Context(), symbol, quantity, price, date)
	})
}

// Short handles POST /portfolio/short
func (h *Handler) Short(w http.ResponseWriter, r *http.Request) {
	h.executeTrade(w, r, func(r *http.Request, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
		return h.ledger.ExecuteShort(r.Context(), symbol, quantity, price, date)
	})
}

// Cover handles POST /portfolio/cover
func (h *Handler) Cover(w http.ResponseWriter, r *http.Request) {
	h.executeTrade(w, r, func(r *http.Request, symbol string, quantity, price decimal.Decimal, date time.Time) (*models.Position, *models.Transaction, error) {
		return h.ledger.ExecuteCover(r.Context(), symbol, quantity, price, date)
	})
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p := h.ledger.Snapshot()

	positions := make([]map[string]interface{}, 0, len(p.Positions))
	for _, pos := range p.Positions {
		positions = append(positions, positionView(pos))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"metadata":  metadataView(p.Metadata),
	})
}

// RefreshPrices handles POST /portfolio/refresh
func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.RefreshPrices(r.Context())

	var partial *ledger.PartialQuoteError
	if err != nil && !errors.As(err, &partial) {
		h.respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"requested": result.Requested,
		"updated":   result.Updated,
	}
	if partial != nil {
		resp["partial"] = true
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetTransactions handles GET /portfolio/transactions with optional
// symbol, type, start and end filters
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	symbol := query.Get("symbol")
	txType := models.TransactionType(query.Get("type"))

	start, end, err := parseDateRange(query.Get("start"), query.Get("end"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if txType != "" && !txType.Valid() {
		h.respondError(w, &models.InvalidInputError{Field: "type", Value: string(txType), Reason: "must be buy, sell, short or cover"})
		return
	}

	p := h.ledger.Snapshot()
	transactions := make([]map[string]interface{}, 0, len(p.Transactions))
	for _, t := range p.Transactions {
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		if txType != "" && t.TransactionType != txType {
			continue
		}
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		transactions = append(transactions, transactionView(t))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// GetPortfolioMetrics handles GET /analytics/metrics
func (h *Handler) GetPortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	m := h.analytics.CalculatePortfolioMetrics()
	respondJSON(w, http.StatusOK, portfolioMetricsView(m))
}

// GetPerformanceMetrics handles GET /analytics/performance
func (h *Handler) GetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, end, err := parseDateRange(query.Get("start"), query.Get("end"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	m := h.analytics.CalculatePerformanceMetrics(start, end)
	respondJSON(w, http.StatusOK, performanceMetricsView(m))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// parseDateRange parses optional YYYY-MM-DD bounds. The end bound is
// inclusive through the end of its day.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()

	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return start, end, &models.InvalidInputError{Field: "start", Value: startStr, Reason: "expected YYYY-MM-DD"}
		}
		start = parsed
	}
	if endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			return start, end, &models.InvalidInputError{Field: "end", Value: endStr, Reason: "expected YYYY-MM-DD"}
		}
		end = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		invalidInput  *models.InvalidInputError
		notFound      *ledger.PositionNotFoundError
		insufficient  *ledger.InsufficientSharesError
		quoteFailed   *ledger.QuoteUnavailableError
		saveFailed    *ledger.PersistenceError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &insufficient):
		status = http.StatusConflict
	case errors.As(err, &quoteFailed):
		status = http.StatusBadGateway
	case errors.As(err, &saveFailed):
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	http.Error(w, err.Error(), status)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio routes
	api.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/buy", handler.Buy).Methods("POST")
	api.HandleFunc("/portfolio/sell", handler.Sell).Methods("POST")
	api.HandleFunc("/portfolio/short", handler.Short).Methods("POST")
	api.HandleFunc("/portfolio/cover", handler.Cover).Methods("POST")
	api.HandleFunc("/portfolio/refresh", handler.RefreshPrices).Methods("POST")
	api.HandleFunc("/portfolio/transactions", handler.GetTransactions).Methods("GET")

	// Analytics routes
	api.HandleFunc("/analytics/metrics", handler.GetPortfolioMetrics).Methods("GET")
	api.HandleFunc("/analytics/performance", handler.GetPerformanceMetrics).Methods("GET")

	return r
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ycwu/twstock/backend/internal/api/handlers"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Stock       *handlers.StockHandler
	Chip        *handlers.ChipHandler
	Fundamental *handlers.FundamentalHandler
	Screen      *handlers.ScreenHandler
	Export      *handlers.ExportHandler
	Stream      *StreamHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 路由設定只在這個函式
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	stock := r.PathPrefix("/api/stock").Subrouter()

	stock.HandleFunc("/search", h.Stock.Search).Methods("GET")
	stock.HandleFunc("/realtime", h.Stock.Realtime).Methods("GET")
	stock.HandleFunc("/price", h.Stock.Price).Methods("GET")
	stock.HandleFunc("/indicators", h.Stock.Indicators).Methods("GET")

	stock.HandleFunc("/institutional", h.Chip.Institutional).Methods("GET")
	stock.HandleFunc("/shareholding", h.Chip.Shareholding).Methods("GET")
	stock.HandleFunc("/margin", h.Chip.Margin).Methods("GET")
	stock.HandleFunc("/holders", h.Chip.Holders).Methods("GET")

	stock.HandleFunc("/dividend", h.Fundamental.Dividend).Methods("GET")
	stock.HandleFunc("/revenue", h.Fundamental.Revenue).Methods("GET")
	stock.HandleFunc("/financial", h.Fundamental.Financial).Methods("GET")
	stock.HandleFunc("/balance-sheet", h.Fundamental.BalanceSheet).Methods("GET")
	stock.HandleFunc("/per", h.Fundamental.PER).Methods("GET")

	stock.HandleFunc("/screen", h.Screen.Screen).Methods("POST")
	stock.HandleFunc("/export", h.Export.Export).Methods("GET")

	stock.HandleFunc("/stream", h.Stream.Serve).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "twstock-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"status":  "error",
						"data":    nil,
						"message": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// File: internal/adapters/handler/http/v1/endpoints.go
package v1

import (
	"net/http"

	"pricewaterfall/internal/core/port"
)

// SetRoutes sets up the public price and health API routes
func SetRoutes(router *http.ServeMux, priceHandler *PriceHandler, healthHandler *HealthHandler) {
	setPriceRoutes(priceHandler, router)
	setHealthRoutes(healthHandler, router)
}

// SetDebugRoutes sets up debug routes (call this separately for debugging)
func SetDebugRoutes(router *http.ServeMux, kv port.KeyValue) {
	debugHandler := NewDebugHandler(kv)

	router.HandleFunc("GET /debug/limiter/keys", debugHandler.GetLimiterKeys)
}

// setPriceRoutes sets up all price-related endpoints
func setPriceRoutes(handler *PriceHandler, router *http.ServeMux) {
	// Resolution and listing
	router.HandleFunc("GET /prices/current/{asset}", handler.GetCurrentPrice) // ?symbol={hint}
	router.HandleFunc("GET /prices", handler.ListPrices)

	// History and analytics
	router.HandleFunc("GET /prices/history/{asset}", handler.GetPriceHistory) // ?limit={n}
	router.HandleFunc("GET /prices/volatility", handler.GetVolatility)        // ?days={n}&assets={csv}

	// Manual refresh, rate limited per caller
	router.HandleFunc("POST /prices/refresh", handler.RefreshPrices)
}

// setHealthRoutes sets up system health endpoints
func setHealthRoutes(handler *HealthHandler, router *http.ServeMux) {
	router.HandleFunc("GET /health", handler.GetSystemHealth)
	router.HandleFunc("GET /health/detailed", handler.GetDetailedHealth)
}

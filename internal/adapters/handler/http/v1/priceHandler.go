package v1

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
	"pricewaterfall/internal/core/service/ratelimit"
	"pricewaterfall/internal/utils"
)

// RefreshLimit caps POST /prices/refresh per client IP.
type RefreshLimit struct {
	MaxAttempts int
	Window      time.Duration
}

type PriceHandler struct {
	priceService port.PriceService
	limiter      *ratelimit.Limiter
	refreshLimit RefreshLimit

	// Advertised via Retry-After when a fallback cooldown blocks a request.
	cooldownHint time.Duration
}

func NewPriceHandler(
	priceService port.PriceService,
	limiter *ratelimit.Limiter,
	refreshLimit RefreshLimit,
	cooldownHint time.Duration,
) *PriceHandler {
	if refreshLimit.MaxAttempts <= 0 {
		refreshLimit.MaxAttempts = 5
	}
	if refreshLimit.Window <= 0 {
		refreshLimit.Window = time.Minute
	}
	if cooldownHint <= 0 {
		cooldownHint = 60 * time.Second
	}
	return &PriceHandler{
		priceService: priceService,
		limiter:      limiter,
		refreshLimit: refreshLimit,
		cooldownHint: cooldownHint,
	}
}

// Response structures
type CurrentPriceResponse struct {
	AssetID          string  `json:"asset_id"`
	Symbol           string  `json:"symbol"`
	PriceUSD         float64 `json:"price_usd"`
	Change24hPercent float64 `json:"change_24h_percent"`
	UpdatedAt        int64   `json:"updated_at"`
	Source           string  `json:"source"`
}

type PriceListResponse struct {
	AsOf   *int64                 `json:"as_of,omitempty"`
	Count  int                    `json:"count"`
	Quotes []CurrentPriceResponse `json:"quotes"`
}

type HistoryPointResponse struct {
	PriceUSD   float64 `json:"price_usd"`
	RecordedAt int64   `json:"recorded_at"`
}

type HistoryResponse struct {
	AssetID string                 `json:"asset_id"`
	Points  []HistoryPointResponse `json:"points"`
}

type RefreshResponse struct {
	Refreshed bool   `json:"refreshed"`
	Message   string `json:"message"`
}

type VolatilityResponse struct {
	LookbackDays int                `json:"lookback_days"`
	Volatility   map[string]float64 `json:"volatility"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetCurrentPrice handles GET /prices/current/{asset}
func (h *PriceHandler) GetCurrentPrice(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	if asset == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing asset parameter")
		return
	}
	hint := r.URL.Query().Get("symbol")

	quote, err := h.priceService.GetCurrentQuote(r.Context(), asset, hint)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toCurrentPriceResponse(quote))
}

// ListPrices handles GET /prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	quotes, asOf, err := h.priceService.ListCurrentQuotes(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := PriceListResponse{
		Count:  len(quotes),
		Quotes: make([]CurrentPriceResponse, 0, len(quotes)),
	}
	if asOf != nil {
		ts := asOf.Unix()
		response.AsOf = &ts
	}
	for i := range quotes {
		response.Quotes = append(response.Quotes, toCurrentPriceResponse(&quotes[i]))
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetPriceHistory handles GET /prices/history/{asset}
func (h *PriceHandler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	if asset == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing asset parameter")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	points, err := h.priceService.GetHistory(r.Context(), asset, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := HistoryResponse{
		AssetID: strings.ToLower(strings.TrimSpace(asset)),
		Points:  make([]HistoryPointResponse, 0, len(points)),
	}
	for _, p := range points {
		response.Points = append(response.Points, HistoryPointResponse{
			PriceUSD:   p.PriceUSD,
			RecordedAt: p.RecordedAt.Unix(),
		})
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// RefreshPrices handles POST /prices/refresh
func (h *PriceHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	key := ratelimit.AttemptKey("refresh", clientIP(r))
	allowed, err := h.limiter.Allow(r.Context(), key, h.refreshLimit.MaxAttempts, h.refreshLimit.Window)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "rate limit check failed: "+err.Error())
		return
	}
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.refreshLimit.Window.Seconds())))
		h.writeErrorResponse(w, http.StatusTooManyRequests, "too many refresh requests, slow down")
		return
	}

	ran, err := h.priceService.RefreshAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := RefreshResponse{Refreshed: ran}
	if ran {
		response.Message = "refresh executed"
	} else {
		response.Message = "refresh already ran recently, serving existing data"
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetVolatility handles GET /prices/volatility
func (h *PriceHandler) GetVolatility(w http.ResponseWriter, r *http.Request) {
	days, err := utils.ParseLookbackDays(r.URL.Query().Get("days"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	assets := utils.SplitCSV(r.URL.Query().Get("assets"))

	vols, err := h.priceService.ComputeVolatilities(r.Context(), days, assets)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, VolatilityResponse{
		LookbackDays: days,
		Volatility:   vols,
	})
}

func toCurrentPriceResponse(q *domain.PriceQuote) CurrentPriceResponse {
	return CurrentPriceResponse{
		AssetID:          q.AssetID,
		Symbol:           q.Symbol,
		PriceUSD:         q.PriceUSD,
		Change24hPercent: q.Change24hPercent,
		UpdatedAt:        q.UpdatedAt.Unix(),
		Source:           q.Source,
	}
}

// clientIP extracts the caller's address for per-IP rate limiting,
// honoring the first X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(ip)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeServiceError maps the service error taxonomy to HTTP statuses.
func (h *PriceHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAsset), errors.Is(err, domain.ErrInvalidLookback):
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCooldownActive):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.cooldownHint.Seconds())))
		h.writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		h.writeErrorResponse(w, http.StatusTooManyRequests, err.Error())
	default:
		h.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// Helper methods

func (h *PriceHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.Write([]byte(`{"error":"internal_error","message":"failed to encode response"}`))
	}
}

func (h *PriceHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errorType := "bad_request"
	switch statusCode {
	case http.StatusNotFound:
		errorType = "not_found"
	case http.StatusTooManyRequests:
		errorType = "rate_limited"
	case http.StatusServiceUnavailable:
		errorType = "cooldown_active"
	case http.StatusInternalServerError:
		errorType = "internal_error"
	}

	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	h.writeJSONResponse(w, statusCode, response)
}

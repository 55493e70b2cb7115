// File: internal/adapters/handler/http/v1/debug.go
package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"pricewaterfall/internal/core/port"
)

// DebugHandler exposes the limiter's key space for operators diagnosing
// stuck cooldowns or runaway rate-limit counters.
type DebugHandler struct {
	kv port.KeyValue
}

func NewDebugHandler(kv port.KeyValue) *DebugHandler {
	return &DebugHandler{kv: kv}
}

type DebugResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GET /debug/limiter/keys - show every live limiter key with its TTL
func (h *DebugHandler) GetLimiterKeys(w http.ResponseWriter, r *http.Request) {
	if h.kv == nil {
		h.writeResponse(w, http.StatusServiceUnavailable, "limiter store not available", nil)
		return
	}

	ctx := r.Context()

	keys, err := h.kv.Keys(ctx, "*")
	if err != nil {
		h.writeResponse(w, http.StatusInternalServerError, "failed to list limiter keys", nil)
		return
	}

	// Group keys by concern and annotate each with its remaining TTL.
	grouped := map[string]map[string]string{
		"cooldowns":   {},
		"rate_limits": {},
		"debounce":    {},
		"other":       {},
	}
	for _, key := range keys {
		ttl := "unknown"
		if d, err := h.kv.TTL(ctx, key); err == nil {
			ttl = d.String()
		}
		switch {
		case strings.HasPrefix(key, "cooldown:"):
			grouped["cooldowns"][key] = ttl
		case strings.HasPrefix(key, "ratelimit:"):
			grouped["rate_limits"][key] = ttl
		case strings.HasPrefix(key, "debounce:"):
			grouped["debounce"][key] = ttl
		default:
			grouped["other"][key] = ttl
		}
	}

	data := map[string]interface{}{
		"total_keys":   len(keys),
		"keys_by_type": grouped,
	}

	h.writeResponse(w, http.StatusOK, "limiter key space", data)
}

func (h *DebugHandler) writeResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DebugResponse{
		Message: message,
		Data:    data,
	}

	if statusCode >= 400 {
		response.Error = message
		response.Message = ""
	}

	json.NewEncoder(w).Encode(response)
}

// fakefeeds emulates every upstream price provider on one local HTTP
// server, so the service can run end to end without internet access or
// exchange rate limits. Point the *_BASE_URL environment variables at it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// SymbolData holds base price and volatility for each symbol
type SymbolData struct {
	AssetID      string
	BasePrice    float64
	CurrentPrice float64
	OpenPrice24h float64
	Volatility   float64 // percentage as decimal (0.02 = 2%)
	Trend        float64 // 1.0 for up, -1.0 for down
	mu           sync.RWMutex
}

// FeedSimulator drives the random walk and renders each provider's
// response schema from the same underlying prices.
type FeedSimulator struct {
	symbols map[string]*SymbolData // keyed by base symbol, e.g. "BTC"
	ctx     context.Context
	cancel  context.CancelFunc
}

func main() {
	var (
		port     = flag.Int("port", 50100, "Port for the feed emulator")
		helpFlag = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  fakefeeds [--port <N>]\n")
		fmt.Fprintf(os.Stderr, "  fakefeeds --help\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --port N    Port for the feed emulator (default: 50100)\n")
	}

	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	slog.Info("Starting feed emulator...")

	sim := NewFeedSimulator()
	sim.StartPriceGeneration()

	router := http.NewServeMux()
	sim.registerRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Feed emulator started", "port", *port)
		fmt.Printf("Feed emulator running on port %d\n", *port)
		fmt.Printf("Press Ctrl+C to stop...\n\n")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	slog.Info("Shutting down...")

	sim.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	slog.Info("Feed emulator stopped")
}

// NewFeedSimulator seeds realistic crypto prices.
func NewFeedSimulator() *FeedSimulator {
	ctx, cancel := context.WithCancel(context.Background())

	seed := func(assetID string, base, volatility float64) *SymbolData {
		return &SymbolData{
			AssetID:      assetID,
			BasePrice:    base,
			CurrentPrice: base,
			OpenPrice24h: base * 0.99,
			Volatility:   volatility,
			Trend:        1.0,
		}
	}

	return &FeedSimulator{
		symbols: map[string]*SymbolData{
			"BTC":  seed("bitcoin", 96000.0, 0.02),
			"ETH":  seed("ethereum", 3300.0, 0.025),
			"SOL":  seed("solana", 210.0, 0.03),
			"TON":  seed("the-open-network", 5.45, 0.04),
			"DOGE": seed("dogecoin", 0.32, 0.05),
			"XRP":  seed("ripple", 0.62, 0.03),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// StartPriceGeneration runs one random walk per symbol.
func (s *FeedSimulator) StartPriceGeneration() {
	for sym := range s.symbols {
		go s.generateDataForSymbol(sym)
	}
}

func (s *FeedSimulator) generateDataForSymbol(symbol string) {
	data := s.symbols[symbol]

	seed := time.Now().UnixNano() + int64(len(symbol))
	rng := rand.New(rand.NewSource(seed))

	ticker := time.NewTicker(time.Duration(500+rng.Intn(2500)) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			newPrice := s.generateNextPrice(rng, data)

			data.mu.Lock()
			data.CurrentPrice = newPrice
			data.mu.Unlock()

			ticker.Reset(time.Duration(500+rng.Intn(2500)) * time.Millisecond)
		}
	}
}

// generateNextPrice creates the next price using realistic market movements
func (s *FeedSimulator) generateNextPrice(rng *rand.Rand, symbolData *SymbolData) float64 {
	symbolData.mu.Lock()
	defer symbolData.mu.Unlock()

	// Random walk with trend
	change := rng.NormFloat64() * symbolData.Volatility * symbolData.CurrentPrice

	// Add trend bias (10% of the change is trend-based)
	trendStrength := 0.1
	change += change * trendStrength * symbolData.Trend

	newPrice := symbolData.CurrentPrice + change

	// Keep price within reasonable bounds (±20% from base price)
	maxDeviation := symbolData.BasePrice * 0.2
	if newPrice > symbolData.BasePrice+maxDeviation {
		newPrice = symbolData.BasePrice + maxDeviation
		symbolData.Trend = -1.0 // Reverse trend
	} else if newPrice < symbolData.BasePrice-maxDeviation {
		newPrice = symbolData.BasePrice - maxDeviation
		symbolData.Trend = 1.0 // Reverse trend
	}

	// Ensure positive price
	if newPrice <= 0 {
		newPrice = symbolData.BasePrice * 0.01
	}

	newPrice = roundPrice(newPrice)

	// Occasionally change trend (5% chance)
	if rng.Float64() < 0.05 {
		symbolData.Trend = -symbolData.Trend
	}

	return newPrice
}

// roundPrice rounds price to appropriate decimal places based on value
func roundPrice(price float64) float64 {
	if price > 1000 {
		return math.Round(price*100) / 100
	} else if price > 10 {
		return math.Round(price*1000) / 1000
	}
	return math.Round(price*1000000) / 1000000
}

func (s *FeedSimulator) snapshot(symbol string) (last, open float64, ok bool) {
	data, exists := s.symbols[symbol]
	if !exists {
		return 0, 0, false
	}
	data.mu.RLock()
	defer data.mu.RUnlock()
	return data.CurrentPrice, data.OpenPrice24h, true
}

func changePercent(last, open float64) float64 {
	if open <= 0 {
		return 0
	}
	return (last - open) / open * 100
}

// Route registration: one handler per upstream schema.

func (s *FeedSimulator) registerRoutes(router *http.ServeMux) {
	router.HandleFunc("GET /api/v3/ticker/24hr", s.handleBinanceTicker)
	router.HandleFunc("GET /v5/market/tickers", s.handleBybitTickers)
	router.HandleFunc("GET /api/v1/market/allTickers", s.handleKuCoinAllTickers)
	router.HandleFunc("GET /api/v1/market/stats", s.handleKuCoinStats)
	router.HandleFunc("GET /api/v4/spot/tickers", s.handleGateIOTickers)
	router.HandleFunc("GET /api/v5/market/tickers", s.handleOKXTickers)
	router.HandleFunc("GET /api/v5/market/ticker", s.handleOKXTicker)
	router.HandleFunc("GET /api/v3/simple/price", s.handleCoinGeckoSimplePrice)
}

func (s *FeedSimulator) handleBinanceTicker(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("symbol")
	base, found := strings.CutSuffix(pair, "USDT")
	last, open, ok := s.snapshot(base)
	if !found || !ok {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": -1121, "msg": "Invalid symbol."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":             pair,
		"lastPrice":          formatPrice(last),
		"priceChangePercent": fmt.Sprintf("%.3f", changePercent(last, open)),
	})
}

func (s *FeedSimulator) handleBybitTickers(w http.ResponseWriter, r *http.Request) {
	wanted, _ := strings.CutSuffix(r.URL.Query().Get("symbol"), "USDT")

	list := make([]map[string]string, 0, len(s.symbols))
	for sym := range s.symbols {
		if wanted != "" && sym != wanted {
			continue
		}
		last, open, _ := s.snapshot(sym)
		list = append(list, map[string]string{
			"symbol":       sym + "USDT",
			"lastPrice":    formatPrice(last),
			"prevPrice24h": formatPrice(open),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"retCode": 0,
		"retMsg":  "OK",
		"result":  map[string]interface{}{"list": list},
	})
}

func (s *FeedSimulator) handleKuCoinAllTickers(w http.ResponseWriter, _ *http.Request) {
	list := make([]map[string]string, 0, len(s.symbols))
	for sym := range s.symbols {
		last, open, _ := s.snapshot(sym)
		list = append(list, map[string]string{
			"symbol":     sym + "-USDT",
			"last":       formatPrice(last),
			"changeRate": fmt.Sprintf("%.4f", changePercent(last, open)/100),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code": "200000",
		"data": map[string]interface{}{"ticker": list},
	})
}

func (s *FeedSimulator) handleKuCoinStats(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("symbol")
	base, found := strings.CutSuffix(pair, "-USDT")
	last, open, ok := s.snapshot(base)
	if !found || !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": "200000", "data": map[string]string{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code": "200000",
		"data": map[string]string{
			"symbol":     pair,
			"last":       formatPrice(last),
			"changeRate": fmt.Sprintf("%.4f", changePercent(last, open)/100),
		},
	})
}

func (s *FeedSimulator) handleGateIOTickers(w http.ResponseWriter, r *http.Request) {
	wanted, _ := strings.CutSuffix(r.URL.Query().Get("currency_pair"), "_USDT")

	list := make([]map[string]string, 0, len(s.symbols))
	for sym := range s.symbols {
		if wanted != "" && sym != wanted {
			continue
		}
		last, open, _ := s.snapshot(sym)
		list = append(list, map[string]string{
			"currency_pair":     sym + "_USDT",
			"last":              formatPrice(last),
			"change_percentage": fmt.Sprintf("%.2f", changePercent(last, open)),
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *FeedSimulator) handleOKXTickers(w http.ResponseWriter, _ *http.Request) {
	data := make([]map[string]string, 0, len(s.symbols))
	for sym := range s.symbols {
		last, open, _ := s.snapshot(sym)
		data = append(data, map[string]string{
			"instId":  sym + "-USDT",
			"last":    formatPrice(last),
			"open24h": formatPrice(open),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"code": "0", "data": data})
}

func (s *FeedSimulator) handleOKXTicker(w http.ResponseWriter, r *http.Request) {
	inst := r.URL.Query().Get("instId")
	base, found := strings.CutSuffix(inst, "-USDT")
	last, open, ok := s.snapshot(base)
	if !found || !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"code": "51001", "data": []interface{}{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code": "0",
		"data": []map[string]string{{
			"instId":  inst,
			"last":    formatPrice(last),
			"open24h": formatPrice(open),
		}},
	})
}

func (s *FeedSimulator) handleCoinGeckoSimplePrice(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")

	byAsset := make(map[string]*SymbolData, len(s.symbols))
	for _, data := range s.symbols {
		byAsset[data.AssetID] = data
	}

	out := make(map[string]map[string]float64)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		data, ok := byAsset[id]
		if !ok {
			continue
		}
		data.mu.RLock()
		last, open := data.CurrentPrice, data.OpenPrice24h
		data.mu.RUnlock()
		out[id] = map[string]float64{
			"usd":            last,
			"usd_24h_change": changePercent(last, open),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%g", p)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Shutdown stops the price generators.
func (s *FeedSimulator) Shutdown() {
	s.cancel()
}

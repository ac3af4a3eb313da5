package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/internal/external/twse"
	"github.com/ycwu/twstock/backend/internal/indicator"
	"github.com/ycwu/twstock/backend/internal/roster"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// indicatorLeadInDays is the extra history fetched before the requested
// range so windowed indicators are stable at the first returned date.
const indicatorLeadInDays = 120

// StockHandler handles market data API endpoints
// ⭐ SSOT: 行情類 API 端點只在這個 handler
type StockHandler struct {
	roster  *roster.Roster
	finmind *finmind.Client
	quotes  *twse.Client
	logger  *logger.Logger

	now func() time.Time
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(r *roster.Roster, fm *finmind.Client, quotes *twse.Client, log *logger.Logger) *StockHandler {
	return &StockHandler{
		roster:  r,
		finmind: fm,
		quotes:  quotes,
		logger:  log,
		now:     time.Now,
	}
}

// Search returns roster entries matching the query by id or name.
// GET /api/stock/search?q=
func (h *StockHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")

	if query == "" {
		respondOK(w, []finmind.StockInfo{})
		return
	}

	if !h.roster.Available(ctx) {
		respondError(w, http.StatusServiceUnavailable, "無法取得股票清單")
		return
	}

	respondOK(w, h.roster.Search(ctx, query))
}

// Realtime returns the intraday quote for one stock.
// GET /api/stock/realtime?id=
func (h *StockHandler) Realtime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}

	quote := h.quotes.Quote(ctx, stockID)
	if quote == nil {
		respondError(w, http.StatusNotFound, "無法取得即時報價（可能非交易時段）")
		return
	}

	respondOK(w, quote)
}

// Price returns the daily K-line series plus the stock's display name.
// GET /api/stock/price?id=&start=&end=
func (h *StockHandler) Price(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 12)
	}

	data := h.finmind.FetchRaw(ctx, finmind.DatasetPrice, stockID, startDate, endDate)

	respondOK(w, map[string]interface{}{
		"name": h.roster.Name(ctx, stockID),
		"data": data,
	})
}

// Indicators computes the full technical indicator set for one stock.
// GET /api/stock/indicators?id=&start=&end=&realtime={0,1}
//
// An extra lead-in window is fetched before start so MA120/MACD/ADX are
// already stable at the first returned row, then the warm-up prefix is
// trimmed from the response. realtime=1 splices the intraday quote in
// as today's bar during trading hours.
func (h *StockHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 12)
	}

	warmupStart, err := leadInStart(startDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "日期格式錯誤（應為 YYYY-MM-DD）")
		return
	}

	prices := h.finmind.FetchPrices(ctx, stockID, warmupStart, endDate)
	if len(prices) == 0 {
		respondError(w, http.StatusNotFound, "無法取得股價資料")
		return
	}

	bars := toBars(prices)

	if r.URL.Query().Get("realtime") == "1" && twse.IsTradingHours(h.now()) {
		bars = h.spliceQuote(ctx, stockID, bars)
	}

	respondOK(w, indicator.Compute(bars, startDate))
}

// spliceQuote replaces/appends today's bar with the intraday quote so
// the latest indicator row tracks the live price. Best-effort: a
// missing quote leaves bars untouched.
func (h *StockHandler) spliceQuote(ctx context.Context, stockID string, bars []indicator.Bar) []indicator.Bar {
	quote := h.quotes.Quote(ctx, stockID)
	if quote == nil || quote.Price <= 0 {
		return bars
	}

	today := twse.Today(h.now())

	// 移除可能已存在的今日資料，避免重複
	kept := bars[:0]
	for _, b := range bars {
		if b.Date != today {
			kept = append(kept, b)
		}
	}

	kept = append(kept, indicator.Bar{
		Date:   today,
		Open:   quote.Open,
		High:   quote.High,
		Low:    quote.Low,
		Close:  quote.Price,
		Volume: float64(quote.Volume),
	})

	h.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"close":    quote.Price,
		"volume":   quote.Volume,
	}).Info("Merged intraday quote into indicator input")
	return kept
}

// toBars maps upstream price records to indicator input, sorted by
// date ascending.
func toBars(prices []finmind.PriceRecord) []indicator.Bar {
	bars := make([]indicator.Bar, len(prices))
	for i, p := range prices {
		bars[i] = indicator.Bar{
			Date:   p.Date,
			Open:   p.Open,
			High:   p.Max,
			Low:    p.Min,
			Close:  p.Close,
			Volume: p.TradingVolume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars
}

// leadInStart shifts a YYYY-MM-DD date back by the indicator lead-in.
func leadInStart(startDate string) (string, error) {
	t, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -indicatorLeadInDays).Format("2006-01-02"), nil
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ycwu/twstock/backend/internal/chip"
	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// HolderFetcher scrapes the ownership-concentration series. Satisfied
// by the Yahoo client.
type HolderFetcher interface {
	FetchMajorHolders(ctx context.Context, stockID string) ([]chip.HolderSample, error)
}

// ChipHandler handles 籌碼面 API endpoints
// ⭐ SSOT: 籌碼類 API 端點只在這個 handler
type ChipHandler struct {
	finmind *finmind.Client
	holders HolderFetcher
	logger  *logger.Logger

	now func() time.Time
}

// NewChipHandler creates a new chip handler.
func NewChipHandler(fm *finmind.Client, holders HolderFetcher, log *logger.Logger) *ChipHandler {
	return &ChipHandler{
		finmind: fm,
		holders: holders,
		logger:  log,
		now:     time.Now,
	}
}

// Institutional returns institutional buy/sell records plus the
// per-institution consecutive net-buy/sell day count.
// GET /api/stock/institutional?id=&start=&end=
func (h *ChipHandler) Institutional(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 6)
	}

	data := h.finmind.FetchRaw(ctx, finmind.DatasetInstitutional, stockID, startDate, endDate)

	// 連買連賣天數直接從同一批 rows 算，不再打一次上游
	records := make([]finmind.InstitutionalRecord, 0, len(data))
	for _, row := range data {
		records = append(records, finmind.InstitutionalRecord{
			Date: rowString(row, "date"),
			Name: rowString(row, "name"),
			Buy:  rowFloat(row, "buy"),
			Sell: rowFloat(row, "sell"),
		})
	}

	respondOKExtra(w, data, map[string]interface{}{
		"consecutive": chip.ConsecutiveNet(records),
	})
}

// Shareholding returns the foreign shareholding ratio series.
// GET /api/stock/shareholding?id=&start=&end=
func (h *ChipHandler) Shareholding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 6)
	}

	respondOK(w, h.finmind.FetchRaw(ctx, finmind.DatasetShareholding, stockID, startDate, endDate))
}

// Margin returns margin purchase / short sale records with the
// short-to-margin ratio appended per row.
// GET /api/stock/margin?id=&start=&end=
func (h *ChipHandler) Margin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 6)
	}

	data := h.finmind.FetchRaw(ctx, finmind.DatasetMargin, stockID, startDate, endDate)

	for _, row := range data {
		marginBal := rowFloat(row, "MarginPurchaseTodayBalance", "MarginPurchaseBalance")
		shortBal := rowFloat(row, "ShortSaleTodayBalance", "ShortSaleBalance")
		row["short_margin_ratio"] = chip.ShortMarginRatio(marginBal, shortBal)
	}

	respondOK(w, data)
}

// Holders returns the scraped ownership-concentration series merged
// with the foreign ratio and close price by nearest date, plus the
// FinMind 股權分散表 rows as "distribution". Best-effort: a failed
// scrape yields an empty list, not an error.
// GET /api/stock/holders?id=&date=
func (h *ChipHandler) Holders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}

	startDate, endDate := defaultDates(h.now(), 3)

	// date 指定時只取那一週的股權分散表，否則抓近三個月
	distStart, distEnd := startDate, endDate
	if date := r.URL.Query().Get("date"); date != "" {
		distStart, distEnd = date, date
	}
	distribution := h.finmind.FetchRaw(ctx, finmind.DatasetHolders, stockID, distStart, distEnd)
	extra := map[string]interface{}{"distribution": distribution}

	samples, err := h.holders.FetchMajorHolders(ctx, stockID)
	if err != nil {
		h.logger.WithError(err).WithField("stock_id", stockID).Error("Holder scrape failed")
	}
	if len(samples) == 0 {
		respondOKExtra(w, []chip.HolderRatioRow{}, extra)
		return
	}

	foreignByDate := make(map[string]float64)
	for _, rec := range h.finmind.FetchShareholding(ctx, stockID, startDate, endDate) {
		foreignByDate[rec.Date] = rec.ForeignInvestmentSharesRatio
	}

	closeByDate := make(map[string]float64)
	for _, rec := range h.finmind.FetchPrices(ctx, stockID, startDate, endDate) {
		closeByDate[rec.Date] = rec.Close
	}

	respondOKExtra(w, chip.MergeHolderRatios(samples, foreignByDate, closeByDate), extra)
}

// rowFloat reads the first present numeric field from an untyped row.
// FinMind 欄位偶爾缺 Today 結尾的欄位，退回用不含 Today 的名稱。
func rowFloat(row finmind.Row, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			if f, ok := v.(float64); ok && f != 0 {
				return f
			}
		}
	}
	return 0
}

func rowString(row finmind.Row, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}

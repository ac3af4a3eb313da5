package handlers

import (
	"net/http"
	"time"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// dividendLookbackDays is how far back the dividend history reaches.
const dividendLookbackDays = 3650

// FundamentalHandler handles 基本面 API endpoints
// ⭐ SSOT: 基本面 API 端點只在這個 handler
type FundamentalHandler struct {
	finmind *finmind.Client
	logger  *logger.Logger

	now func() time.Time
}

// NewFundamentalHandler creates a new fundamental handler.
func NewFundamentalHandler(fm *finmind.Client, log *logger.Logger) *FundamentalHandler {
	return &FundamentalHandler{
		finmind: fm,
		logger:  log,
		now:     time.Now,
	}
}

// Dividend returns dividend history for the last ten years.
// GET /api/stock/dividend?id=
func (h *FundamentalHandler) Dividend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}

	start := h.now().AddDate(0, 0, -dividendLookbackDays).Format("2006-01-02")
	respondOK(w, h.finmind.FetchRaw(ctx, finmind.DatasetDividend, stockID, start, ""))
}

// Revenue returns the monthly revenue series.
// GET /api/stock/revenue?id=&start=&end=
func (h *FundamentalHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, finmind.DatasetRevenue, 36)
}

// Financial returns financial statement rows (EPS, 毛利率等).
// GET /api/stock/financial?id=&start=&end=
func (h *FundamentalHandler) Financial(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, finmind.DatasetFinancial, 36)
}

// BalanceSheet returns balance sheet rows (ROE, ROA, 負債比).
// GET /api/stock/balance-sheet?id=&start=&end=
func (h *FundamentalHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, finmind.DatasetBalanceSheet, 36)
}

// PER returns price-to-earnings / price-to-book rows.
// GET /api/stock/per?id=&start=&end=
func (h *FundamentalHandler) PER(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, finmind.DatasetPER, 3)
}

// passthrough serves a dataset verbatim with a default date range.
func (h *FundamentalHandler) passthrough(w http.ResponseWriter, r *http.Request, dataset string, defaultMonths int) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), defaultMonths)
	}

	respondOK(w, h.finmind.FetchRaw(ctx, dataset, stockID, startDate, endDate))
}

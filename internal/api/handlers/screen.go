package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ycwu/twstock/backend/internal/screener"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// ScreenHandler handles the multi-stock technical screen endpoint.
type ScreenHandler struct {
	screener *screener.Screener
	logger   *logger.Logger
}

// NewScreenHandler creates a new screen handler.
func NewScreenHandler(s *screener.Screener, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{
		screener: s,
		logger:   log,
	}
}

// ScreenRequest is the scan request body.
type ScreenRequest struct {
	StockIDs   []string `json:"stock_ids"`
	Conditions []string `json:"conditions"`
}

// Screen scans the given stocks against every condition in parallel.
// POST /api/stock/screen
func (h *ScreenHandler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// 空 body 或非 JSON 視同空請求
		req = ScreenRequest{}
	}

	if len(req.StockIDs) == 0 {
		respondError(w, http.StatusBadRequest, "未提供待掃描股票代碼")
		return
	}
	if len(req.Conditions) == 0 {
		// 無條件直接回傳空陣列，不打上游
		respondOK(w, []screener.Result{})
		return
	}

	respondOK(w, h.screener.Screen(ctx, req.StockIDs, req.Conditions))
}

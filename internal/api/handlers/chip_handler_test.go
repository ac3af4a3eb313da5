package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycwu/twstock/backend/internal/chip"
	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

type stubHolderFetcher struct {
	samples []chip.HolderSample
	err     error
}

func (s *stubHolderFetcher) FetchMajorHolders(ctx context.Context, stockID string) ([]chip.HolderSample, error) {
	return s.samples, s.err
}

func newChipHandler(stub *upstreamStub, holders HolderFetcher) (*ChipHandler, func()) {
	upstream := stub.server()
	fm := newFinmindClient(upstream.URL)
	if holders == nil {
		holders = &stubHolderFetcher{}
	}
	return NewChipHandler(fm, holders, logger.Nop()), upstream.Close
}

func TestInstitutionalConsecutive(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetInstitutional, []map[string]interface{}{
		{"date": "2024-03-11", "stock_id": "2330", "name": "Foreign_Investor", "buy": 500.0, "sell": 100.0},
		{"date": "2024-03-12", "stock_id": "2330", "name": "Foreign_Investor", "buy": 700.0, "sell": 200.0},
		{"date": "2024-03-13", "stock_id": "2330", "name": "Foreign_Investor", "buy": 900.0, "sell": 300.0},
	})

	h, teardown := newChipHandler(stub, nil)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/institutional?id=2330&start=2024-03-01&end=2024-03-31", nil)
	rec := httptest.NewRecorder()
	h.Institutional(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status      string                   `json:"status"`
		Data        []map[string]interface{} `json:"data"`
		Consecutive map[string]int           `json:"consecutive"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Len(t, payload.Data, 3)
	assert.Equal(t, 3, payload.Consecutive["外資"])
}

func TestInstitutionalMissingID(t *testing.T) {
	h, teardown := newChipHandler(newUpstreamStub(), nil)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/institutional", nil)
	rec := httptest.NewRecorder()
	h.Institutional(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstitutionalEmptyDatasetSingleFetch(t *testing.T) {
	stub := newUpstreamStub()

	h, teardown := newChipHandler(stub, nil)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/institutional?id=2330&start=2024-03-01&end=2024-03-31", nil)
	rec := httptest.NewRecorder()
	h.Institutional(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// 空結果不進快取，連買連賣必須從同一批 rows 算，不能再抓一次
	assert.Equal(t, 1, stub.calls[finmind.DatasetInstitutional])
}

func TestMarginAddsShortMarginRatio(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetMargin, []map[string]interface{}{
		{"date": "2024-03-13", "stock_id": "2330", "MarginPurchaseTodayBalance": 20000.0, "ShortSaleTodayBalance": 1500.0},
		{"date": "2024-03-14", "stock_id": "2330", "MarginPurchaseTodayBalance": 0.0, "ShortSaleTodayBalance": 800.0},
	})

	h, teardown := newChipHandler(stub, nil)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/margin?id=2330&start=2024-03-01&end=2024-03-31", nil)
	rec := httptest.NewRecorder()
	h.Margin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env, err := decodeEnvelope(rec)
	require.NoError(t, err)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 7.5, rows[0]["short_margin_ratio"])
	// 融資餘額為 0 時券資比為 0
	assert.Equal(t, 0.0, rows[1]["short_margin_ratio"])
}

func TestHoldersMergesSeries(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetShareholding, []map[string]interface{}{
		{"date": "2024-03-12", "stock_id": "2330", "ForeignInvestmentSharesRatio": 73.9},
	})
	stub.set(finmind.DatasetPrice, []map[string]interface{}{
		{"date": "2024-03-12", "stock_id": "2330", "close": 593.0},
	})

	holders := &stubHolderFetcher{samples: []chip.HolderSample{
		{Date: "2024-03-15", MajorRatio: 73.5, DirectorMajorRatio: 74.1, RetailRatio: 6.2},
	}}

	h, teardown := newChipHandler(stub, holders)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/holders?id=2330", nil)
	rec := httptest.NewRecorder()
	h.Holders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env, err := decodeEnvelope(rec)
	require.NoError(t, err)

	var rows []chip.HolderRatioRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)

	// 外資比例與收盤價往回找最近 7 天內的日期
	assert.Equal(t, "2024-03-15", rows[0].Date)
	assert.Equal(t, 73.9, rows[0].ForeignRatio)
	assert.Equal(t, 593.0, rows[0].Price)
	assert.Equal(t, 73.5, rows[0].MajorRatio)
}

func TestHoldersDistribution(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetHolders, []map[string]interface{}{
		{"date": "2024-03-15", "stock_id": "2330", "HoldingSharesLevel": "1,000,001-5,000,000", "percent": 12.3},
	})

	h, teardown := newChipHandler(stub, nil)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/holders?id=2330&date=2024-03-15", nil)
	rec := httptest.NewRecorder()
	h.Holders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Status       string                   `json:"status"`
		Data         json.RawMessage          `json:"data"`
		Distribution []map[string]interface{} `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	require.Len(t, payload.Distribution, 1)
	assert.Equal(t, "2024-03-15", payload.Distribution[0]["date"])

	// date 指定時股權分散表只抓那一天
	q := stub.queries[finmind.DatasetHolders]
	assert.Equal(t, "2024-03-15", q.Get("start_date"))
	assert.Equal(t, "2024-03-15", q.Get("end_date"))
}

func TestHoldersScrapeFailureIsEmpty(t *testing.T) {
	holders := &stubHolderFetcher{err: errors.New("markup changed")}

	h, teardown := newChipHandler(newUpstreamStub(), holders)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/holders?id=2330", nil)
	rec := httptest.NewRecorder()
	h.Holders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env, err := decodeEnvelope(rec)
	require.NoError(t, err)
	assert.Equal(t, "ok", env.Status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

func newExportHandler(stub *upstreamStub) (*ExportHandler, func()) {
	upstream := stub.server()
	fm := newFinmindClient(upstream.URL)
	return NewExportHandler(fm, logger.Nop()), upstream.Close
}

func TestExportCSV(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetPrice, priceRows("2330", "2024-01-01", 3))

	h, teardown := newExportHandler(stub)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/export?id=2330&start=2024-01-01&end=2024-01-31&type=price", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=2330_price_2024-01-01_2024-01-31.csv",
		rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	// UTF-8 BOM 讓 Excel 正確判讀編碼
	require.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(body, "\xEF\xBB\xBF")), "\n")
	require.Len(t, lines, 4) // header + 3 rows

	// date 與 stock_id 排最前面，其餘欄位按字母排序
	assert.True(t, strings.HasPrefix(lines[0], "date,stock_id,"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,2330,"))
}

func TestExportUnknownTypeDefaultsToPrice(t *testing.T) {
	stub := newUpstreamStub()
	stub.set(finmind.DatasetPrice, priceRows("2330", "2024-01-01", 1))

	h, teardown := newExportHandler(stub)
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/export?id=2330&start=2024-01-01&end=2024-01-31&type=bogus", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "2330_price_")
}

func TestExportNoData(t *testing.T) {
	h, teardown := newExportHandler(newUpstreamStub())
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/export?id=2330&start=2024-01-01&end=2024-01-31&type=margin", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env, err := decodeEnvelope(rec)
	require.NoError(t, err)
	assert.Equal(t, "error", env.Status)
}

func TestExportMissingID(t *testing.T) {
	h, teardown := newExportHandler(newUpstreamStub())
	defer teardown()

	req := httptest.NewRequest(http.MethodGet, "/api/stock/export", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

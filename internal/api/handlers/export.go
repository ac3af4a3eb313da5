package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// exportDatasets maps the export type parameter to its dataset.
var exportDatasets = map[string]string{
	"price":         finmind.DatasetPrice,
	"institutional": finmind.DatasetInstitutional,
	"margin":        finmind.DatasetMargin,
}

// utf8BOM makes Excel open the CSV as UTF-8 instead of 系統編碼.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportHandler handles CSV downloads.
type ExportHandler struct {
	finmind *finmind.Client
	logger  *logger.Logger

	now func() time.Time
}

// NewExportHandler creates a new export handler.
func NewExportHandler(fm *finmind.Client, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		finmind: fm,
		logger:  log,
		now:     time.Now,
	}
}

// Export serves one dataset as a CSV attachment.
// GET /api/stock/export?id=&start=&end=&type={price,institutional,margin}
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stockID := r.URL.Query().Get("id")
	startDate := r.URL.Query().Get("start")
	endDate := r.URL.Query().Get("end")
	exportType := r.URL.Query().Get("type")

	if stockID == "" {
		respondError(w, http.StatusBadRequest, "缺少股票代號")
		return
	}
	if startDate == "" || endDate == "" {
		startDate, endDate = defaultDates(h.now(), 6)
	}

	dataset, ok := exportDatasets[exportType]
	if !ok {
		exportType = "price"
		dataset = finmind.DatasetPrice
	}

	data := h.finmind.FetchRaw(ctx, dataset, stockID, startDate, endDate)
	if len(data) == 0 {
		respondError(w, http.StatusNotFound, "無資料可匯出")
		return
	}

	filename := fmt.Sprintf("%s_%s_%s_%s.csv", stockID, exportType, startDate, endDate)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(utf8BOM)

	writeCSV(w, data)
}

// writeCSV renders untyped rows with a stable column order: date and
// stock_id first, remaining columns alphabetical.
func writeCSV(w http.ResponseWriter, data []finmind.Row) {
	columns := csvColumns(data)

	cw := csv.NewWriter(w)
	cw.Write(columns)

	record := make([]string, len(columns))
	for _, row := range data {
		for i, col := range columns {
			record[i] = csvValue(row[col])
		}
		cw.Write(record)
	}
	cw.Flush()
}

func csvColumns(data []finmind.Row) []string {
	seen := make(map[string]bool)
	for _, row := range data {
		for key := range row {
			seen[key] = true
		}
	}

	leading := []string{"date", "stock_id"}
	columns := make([]string, 0, len(seen))
	for _, col := range leading {
		if seen[col] {
			columns = append(columns, col)
			delete(seen, col)
		}
	}

	rest := make([]string, 0, len(seen))
	for key := range seen {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

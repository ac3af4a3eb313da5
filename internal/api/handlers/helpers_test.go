package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/ycwu/twstock/backend/internal/cache"
	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/internal/roster"
	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// upstreamStub fakes the FinMind API: rows are keyed by dataset name,
// unknown datasets come back empty.
type upstreamStub struct {
	mu       sync.Mutex
	datasets map[string][]map[string]interface{}
	calls    map[string]int
	queries  map[string]url.Values
}

func newUpstreamStub() *upstreamStub {
	return &upstreamStub{
		datasets: make(map[string][]map[string]interface{}),
		calls:    make(map[string]int),
		queries:  make(map[string]url.Values),
	}
}

func (s *upstreamStub) set(dataset string, rows []map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[dataset] = rows
}

func (s *upstreamStub) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataset := r.URL.Query().Get("dataset")

		s.mu.Lock()
		s.calls[dataset]++
		s.queries[dataset] = r.URL.Query()
		rows := s.datasets[dataset]
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"msg":    "success",
			"status": 200,
			"data":   rows,
		})
	}))
}

func newFinmindClient(baseURL string) *finmind.Client {
	httpClient := httputil.New(logger.Nop()).DisableRetry()
	return finmind.NewClient(httpClient, cache.New(200, 5*time.Minute), baseURL, "", logger.Nop())
}

func newRoster(client *finmind.Client) *roster.Roster {
	return roster.New(client, 24*time.Hour, logger.Nop())
}

// priceRows builds n ascending daily price rows starting at startDate.
func priceRows(stockID, startDate string, n int) []map[string]interface{} {
	start, _ := time.Parse("2006-01-02", startDate)

	rows := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		px := 100.0 + float64(i)*0.5
		rows[i] = map[string]interface{}{
			"date":           start.AddDate(0, 0, i).Format("2006-01-02"),
			"stock_id":       stockID,
			"open":           px - 0.5,
			"max":            px + 1,
			"min":            px - 1,
			"close":          px,
			"spread":         0.5,
			"Trading_Volume": 1000.0 + float64(i),
			"Trading_money":  px * 1000,
		}
	}
	return rows
}

// envelope decodes the uniform response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(rec *httptest.ResponseRecorder) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

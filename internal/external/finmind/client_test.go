package finmind

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ycwu/twstock/backend/internal/cache"
	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.Nop()
	httpClient := httputil.New(log).DisableRetry()
	c := NewClient(httpClient, cache.New(10, time.Minute), srv.URL, "", log)
	return c, srv
}

func TestFetchPricesSuccess(t *testing.T) {
	var gotDataset, gotID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotDataset = r.URL.Query().Get("dataset")
		gotID = r.URL.Query().Get("data_id")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"msg":    "success",
			"status": 200,
			"data": []map[string]interface{}{
				{"date": "2024-01-02", "stock_id": "2330", "open": 590.0, "max": 596.0, "min": 589.0, "close": 593.0, "Trading_Volume": 25000000.0},
				{"date": "2024-01-03", "stock_id": "2330", "open": 593.0, "max": 594.0, "min": 580.0, "close": 581.0, "Trading_Volume": 31000000.0},
			},
		})
	})

	prices := c.FetchPrices(context.Background(), "2330", "2024-01-01", "2024-01-31")

	if gotDataset != DatasetPrice {
		t.Errorf("dataset = %q, want %q", gotDataset, DatasetPrice)
	}
	if gotID != "2330" {
		t.Errorf("data_id = %q, want 2330", gotID)
	}
	if len(prices) != 2 {
		t.Fatalf("FetchPrices() returned %d rows, want 2", len(prices))
	}
	if prices[0].Close != 593.0 || prices[0].Max != 596.0 {
		t.Errorf("first row = %+v", prices[0])
	}
}

func TestFetchCachesNonEmptyResults(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"msg":    "success",
			"status": 200,
			"data":   []map[string]interface{}{{"date": "2024-01-02", "close": 593.0}},
		})
	})

	ctx := context.Background()
	c.FetchPrices(ctx, "2330", "2024-01-01", "2024-01-31")
	c.FetchPrices(ctx, "2330", "2024-01-01", "2024-01-31")

	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1 (second call should hit cache)", n)
	}
}

func TestFetchDoesNotCacheEmptyResults(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"msg": "success", "status": 200, "data": []map[string]interface{}{},
		})
	})

	ctx := context.Background()
	c.FetchPrices(ctx, "0000", "2024-01-01", "2024-01-31")
	c.FetchPrices(ctx, "0000", "2024-01-01", "2024-01-31")

	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2 (empty result must not be cached)", n)
	}
}

func TestFetchFailSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "non-success envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"msg": "error", "status": 400, "data": nil,
				})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json at all"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)
			prices := c.FetchPrices(context.Background(), "2330", "2024-01-01", "2024-01-31")
			if len(prices) != 0 {
				t.Errorf("FetchPrices() = %d rows, want 0 on %s", len(prices), tt.name)
			}
		})
	}
}

func TestFetchRawSkipsMalformedRows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msg":"success","status":200,"data":[{"date":"2024-01-02"},"not-an-object",{"date":"2024-01-03"}]}`))
	})

	rows := c.FetchRaw(context.Background(), DatasetDividend, "2330", "2024-01-01", "")
	if len(rows) != 2 {
		t.Errorf("FetchRaw() = %d rows, want 2 (malformed row skipped)", len(rows))
	}
}

func TestFetchSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"msg": "success", "status": 200,
			"data": []map[string]interface{}{{"date": "2024-01-02"}},
		})
	}))
	defer srv.Close()

	log := logger.Nop()
	c := NewClient(httputil.New(log).DisableRetry(), cache.New(10, time.Minute), srv.URL, "secret-token", log)
	c.FetchRaw(context.Background(), DatasetPrice, "2330", "", "")

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization header = %q, want Bearer secret-token", gotAuth)
	}
}

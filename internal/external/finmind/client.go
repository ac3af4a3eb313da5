package finmind

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ycwu/twstock/backend/internal/cache"
	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// Client handles communication with the FinMind open data API
// ⭐ SSOT: 所有 FinMind 呼叫只經過這個 client
//
// Upstream failures are deliberately soft: a timeout, a non-success
// envelope or an empty payload all come back as an empty slice, never
// an error. The dashboard shows "no data" instead of a 500. Only
// non-empty responses are cached, so a transient failure is retried on
// the very next call instead of poisoning the cache for a full TTL.
type Client struct {
	httpClient *httputil.Client
	cache      *cache.Cache
	logger     *logger.Logger
	baseURL    string
	token      string
}

// NewClient creates a new FinMind client. cache may be shared with
// other read paths; the key space is prefixed by dataset name.
func NewClient(httpClient *httputil.Client, c *cache.Cache, baseURL, token string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      c,
		logger:     log,
		baseURL:    baseURL,
		token:      token,
	}
}

// envelope is the FinMind response wrapper
type envelope struct {
	Msg    string            `json:"msg"`
	Status int               `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

// fetch returns the raw rows for a dataset query, cache-checked.
func (c *Client) fetch(ctx context.Context, dataset, stockID, startDate, endDate string) []json.RawMessage {
	cacheKey := fmt.Sprintf("%s:%s:%s:%s", dataset, stockID, startDate, endDate)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]json.RawMessage)
	}

	rows := c.fetchRemote(ctx, dataset, stockID, startDate, endDate)
	if len(rows) > 0 {
		c.cache.Set(cacheKey, rows)
	}
	return rows
}

// fetchRemote issues the upstream HTTP call without caching.
func (c *Client) fetchRemote(ctx context.Context, dataset, stockID, startDate, endDate string) []json.RawMessage {
	params := url.Values{}
	params.Set("dataset", dataset)
	if stockID != "" {
		params.Set("data_id", stockID)
	}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, headers)
	if err != nil {
		c.logger.WithError(err).WithField("dataset", dataset).Error("FinMind request failed")
		return nil
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		c.logger.WithError(err).WithField("dataset", dataset).Error("FinMind read body failed")
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(map[string]interface{}{
			"dataset":     dataset,
			"status_code": resp.StatusCode,
		}).Error("FinMind non-200 response")
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.WithError(err).WithField("dataset", dataset).Error("FinMind decode failed")
		return nil
	}

	if env.Msg != "success" || len(env.Data) == 0 {
		c.logger.WithFields(map[string]interface{}{
			"dataset": dataset,
			"msg":     env.Msg,
			"rows":    len(env.Data),
		}).Debug("FinMind returned no data")
		return nil
	}

	return env.Data
}

// Row is one untyped upstream record. Pass-through datasets stay as
// rows at the route boundary and never travel deeper.
type Row map[string]interface{}

// FetchRaw fetches a dataset as untyped rows.
func (c *Client) FetchRaw(ctx context.Context, dataset, stockID, startDate, endDate string) []Row {
	raw := c.fetch(ctx, dataset, stockID, startDate, endDate)

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		var row Row
		if err := json.Unmarshal(r, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// FetchPrices fetches the daily OHLCV dataset as typed records,
// ordered by date ascending as upstream delivers them.
func (c *Client) FetchPrices(ctx context.Context, stockID, startDate, endDate string) []PriceRecord {
	raw := c.fetch(ctx, DatasetPrice, stockID, startDate, endDate)

	prices := make([]PriceRecord, 0, len(raw))
	for _, r := range raw {
		var p PriceRecord
		if err := json.Unmarshal(r, &p); err != nil {
			continue
		}
		prices = append(prices, p)
	}
	return prices
}

// FetchShareholding fetches the foreign shareholding dataset.
func (c *Client) FetchShareholding(ctx context.Context, stockID, startDate, endDate string) []ShareholdingRecord {
	raw := c.fetch(ctx, DatasetShareholding, stockID, startDate, endDate)

	records := make([]ShareholdingRecord, 0, len(raw))
	for _, r := range raw {
		var rec ShareholdingRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// FetchStockInfo fetches the full stock roster. Not cached here; the
// roster keeps its own daily slot.
func (c *Client) FetchStockInfo(ctx context.Context) []StockInfo {
	raw := c.fetchRemote(ctx, DatasetStockInfo, "", "", "")

	infos := make([]StockInfo, 0, len(raw))
	for _, r := range raw {
		var info StockInfo
		if err := json.Unmarshal(r, &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

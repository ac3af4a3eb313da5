package twse

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ycwu/twstock/backend/internal/cache"
	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// taipei is the exchange timezone. LoadLocation can fail on a stripped
// container image, so fall back to a fixed +08:00.
var taipei = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}()

// Quote is an intraday snapshot from the TWSE/TPEX quote API.
type Quote struct {
	Price          float64 `json:"price"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Volume         int64   `json:"volume"`
	YesterdayClose float64 `json:"yesterday_close"`
	Change         float64 `json:"change"`
	ChangePct      float64 `json:"change_pct"`
	Name           string  `json:"name"`
	Time           string  `json:"time"`
	IsTrading      bool    `json:"is_trading"`
}

// ExchangeResolver maps a stock id to "tse" or "otc". Satisfied by the
// roster.
type ExchangeResolver interface {
	ExchangeType(ctx context.Context, stockID string) string
}

// Client fetches intraday quotes
// ⭐ SSOT: 盤中即時報價只走這個 client，10 秒快取擋重複查詢
type Client struct {
	httpClient *httputil.Client
	cache      *cache.Cache
	resolver   ExchangeResolver
	logger     *logger.Logger
	baseURL    string

	now func() time.Time
}

// NewClient creates a quote client. The cache should be the short-TTL
// quote cache, not the general API cache.
func NewClient(httpClient *httputil.Client, c *cache.Cache, resolver ExchangeResolver, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      c,
		resolver:   resolver,
		logger:     log,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// Quote returns the current quote for a stock, or nil when unavailable
// (off-hours, unknown id, upstream failure). Never returns an error to
// the caller; the quote is best-effort by design.
func (c *Client) Quote(ctx context.Context, stockID string) *Quote {
	cacheKey := "realtime:" + stockID
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*Quote)
	}

	ex := c.resolver.ExchangeType(ctx, stockID)
	fullURL := fmt.Sprintf("%s/stock/api/getStockInfo.jsp?ex_ch=%s_%s.tw&json=1&delay=0", c.baseURL, ex, stockID)

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0",
		"Referer":    "https://mis.twse.com.tw/stock/fibest.jsp",
	})
	if err != nil {
		c.logger.WithError(err).WithField("stock_id", stockID).Error("TWSE quote request failed")
		return nil
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		c.logger.WithError(err).WithField("stock_id", stockID).Error("TWSE quote read failed")
		return nil
	}

	quote := c.parseQuote(body)
	if quote == nil {
		return nil
	}
	quote.IsTrading = IsTradingHours(c.now())

	c.cache.Set(cacheKey, quote)
	return quote
}

// parseQuote extracts the first msgArray element.
// TWSE 回傳全是字串欄位，還帶千分位逗號，用 gjson 逐欄撈。
// z=成交價 o=開盤 h=最高 l=最低 v=累計量 y=昨收 n=名稱 t=時間
func (c *Client) parseQuote(body []byte) *Quote {
	msg := gjson.GetBytes(body, "msgArray.0")
	if !msg.Exists() {
		return nil
	}

	price, ok := quoteFloat(msg.Get("z"))
	if !ok {
		// 盤前或無成交時 z 是 "-"，退而用暫收價
		if price, ok = quoteFloat(msg.Get("pz")); !ok {
			return nil
		}
	}

	q := &Quote{
		Price: price,
		Name:  msg.Get("n").String(),
		Time:  msg.Get("t").String(),
	}

	q.Open = quoteFloatOr(msg.Get("o"), price)
	q.High = quoteFloatOr(msg.Get("h"), price)
	q.Low = quoteFloatOr(msg.Get("l"), price)
	q.YesterdayClose = quoteFloatOr(msg.Get("y"), price)

	if v, ok := quoteFloat(msg.Get("v")); ok {
		q.Volume = int64(v)
	}

	q.Change = round2(q.Price - q.YesterdayClose)
	if q.YesterdayClose != 0 {
		q.ChangePct = round2(q.Change / q.YesterdayClose * 100)
	}

	return q
}

// quoteFloat parses a TWSE numeric field. "-" and "" mean no value.
func quoteFloat(r gjson.Result) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(r.String()), ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func quoteFloatOr(r gjson.Result, fallback float64) float64 {
	if f, ok := quoteFloat(r); ok {
		return f
	}
	return fallback
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// IsTradingHours reports whether t falls in the TWSE trading session
// (Mon–Fri 09:00–13:30, Asia/Taipei).
func IsTradingHours(t time.Time) bool {
	t = t.In(taipei)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60 && mins <= 13*60+30
}

// Today returns today's date string in exchange time.
func Today(t time.Time) string {
	return t.In(taipei).Format("2006-01-02")
}

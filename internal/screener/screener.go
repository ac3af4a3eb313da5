package screener

import (
	"context"
	"sync"
	"time"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/internal/indicator"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// Condition identifiers accepted by the screener.
const (
	CondPriceAboveMA20        = "price_above_ma20"
	CondPriceBelowMA20        = "price_below_ma20"
	CondKDGoldenCross         = "kd_golden_cross"
	CondKDDeathCross          = "kd_death_cross"
	CondMACDHistogramPositive = "macd_histogram_positive"
	CondMACDGoldenCross       = "macd_golden_cross"
	CondMACDEntangle          = "macd_entangle"
)

// entangleWindow is how many trailing histogram bars the entanglement
// condition inspects; entangleRatio bounds them relative to the close.
const (
	entangleWindow = 4
	entangleRatio  = 0.0015 // 0.15% of the latest close
)

// leadInDays is how far back each per-stock fetch reaches so MA20 and
// MACD have room to stabilize.
const leadInDays = 120

// minBars is the minimum history a stock needs to be evaluated at all.
const minBars = 20

// PriceSource supplies daily bars for one stock. Satisfied by the
// FinMind client.
type PriceSource interface {
	FetchPrices(ctx context.Context, stockID, startDate, endDate string) []finmind.PriceRecord
}

// NameSource resolves display names. Satisfied by the roster.
type NameSource interface {
	Name(ctx context.Context, stockID string) string
}

// Result is one matching stock with the values the dashboard renders.
type Result struct {
	StockID   string  `json:"stock_id"`
	StockName string  `json:"stock_name"`
	Close     float64 `json:"close"`
	MA20      float64 `json:"ma20"`
	K         float64 `json:"k"`
	D         float64 `json:"d"`
	MACDHist  float64 `json:"macd_hist"`
}

// Screener evaluates technical conditions across many stocks in
// parallel.
// ⭐ SSOT: 選股掃描邏輯只在這裡
type Screener struct {
	prices  PriceSource
	names   NameSource
	workers int
	logger  *logger.Logger

	now func() time.Time
}

// New creates a screener with the given worker pool size.
func New(prices PriceSource, names NameSource, workers int, log *logger.Logger) *Screener {
	return &Screener{
		prices:  prices,
		names:   names,
		workers: workers,
		logger:  log,
		now:     time.Now,
	}
}

// Screen evaluates every stock against all conditions (logical AND)
// and returns one Result per matching stock. Empty conditions return
// an empty set without touching upstream. Per-stock failures are
// logged and dropped, never propagated; result order is whatever the
// workers produced.
func (s *Screener) Screen(ctx context.Context, stockIDs, conditions []string) []Result {
	results := make([]Result, 0)
	if len(stockIDs) == 0 || len(conditions) == 0 {
		return results
	}

	workers := s.workers
	if workers > len(stockIDs) {
		workers = len(stockIDs)
	}

	idCh := make(chan string, len(stockIDs))
	resultCh := make(chan *Result, len(stockIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stockID := range idCh {
				resultCh <- s.analyze(ctx, stockID, conditions)
			}
		}()
	}

	for _, id := range stockIDs {
		idCh <- id
	}
	close(idCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		if r != nil {
			results = append(results, *r)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"scanned":    len(stockIDs),
		"matched":    len(results),
		"conditions": conditions,
	}).Info("Screen completed")

	return results
}

// analyze evaluates one stock. A nil return means "did not match",
// whether from data shortage, missing fields or a failed condition.
func (s *Screener) analyze(ctx context.Context, stockID string, conditions []string) (result *Result) {
	defer func() {
		// 單檔出錯不拖垮整批掃描
		if r := recover(); r != nil {
			s.logger.WithFields(map[string]interface{}{
				"stock_id": stockID,
				"panic":    r,
			}).Error("Screen worker recovered")
			result = nil
		}
	}()

	end := s.now()
	start := end.AddDate(0, 0, -leadInDays)
	records := s.prices.FetchPrices(ctx, stockID,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if len(records) < minBars {
		return nil
	}

	bars := make([]indicator.Bar, len(records))
	for i, r := range records {
		bars[i] = indicator.Bar{
			Date:   r.Date,
			Open:   r.Open,
			High:   r.Max,
			Low:    r.Min,
			Close:  r.Close,
			Volume: r.TradingVolume,
		}
	}

	series := indicator.Compute(bars, "")
	snap, ok := snapshot(series, bars[len(bars)-1].Close)
	if !ok {
		return nil
	}

	for _, cond := range conditions {
		if !snap.matches(cond) {
			return nil
		}
	}

	return &Result{
		StockID:   stockID,
		StockName: s.names.Name(ctx, stockID),
		Close:     snap.close,
		MA20:      snap.ma20,
		K:         snap.k,
		D:         snap.d,
		MACDHist:  snap.hist,
	}
}

// latestSnapshot holds the last two bars' worth of indicator values.
type latestSnapshot struct {
	close float64
	ma20  float64

	k, d         float64
	prevK, prevD float64

	macd, signal         float64
	prevMACD, prevSignal float64

	hist     float64
	histTail []float64 // up to entangleWindow trailing values
}

// snapshot pulls the fields every condition reads. Any required field
// missing means the stock cannot be evaluated.
func snapshot(s *indicator.Series, lastClose float64) (latestSnapshot, bool) {
	n := s.Len()
	if n < 2 {
		return latestSnapshot{}, false
	}

	last, prev := n-1, n-2
	snap := latestSnapshot{close: lastClose}

	required := []struct {
		col []*float64
		dst *float64
		idx int
	}{
		{s.MA20, &snap.ma20, last},
		{s.K, &snap.k, last},
		{s.D, &snap.d, last},
		{s.K, &snap.prevK, prev},
		{s.D, &snap.prevD, prev},
		{s.MACD, &snap.macd, last},
		{s.MACDSignal, &snap.signal, last},
		{s.MACD, &snap.prevMACD, prev},
		{s.MACDSignal, &snap.prevSignal, prev},
		{s.MACDHistogram, &snap.hist, last},
	}
	for _, f := range required {
		v := f.col[f.idx]
		if v == nil {
			return latestSnapshot{}, false
		}
		*f.dst = *v
	}

	tailStart := n - entangleWindow
	if tailStart < 0 {
		tailStart = 0
	}
	for _, v := range s.MACDHistogram[tailStart:] {
		if v != nil {
			snap.histTail = append(snap.histTail, *v)
		}
	}

	return snap, true
}

// matches evaluates a single condition against the snapshot. Unknown
// condition ids never match.
func (l latestSnapshot) matches(cond string) bool {
	switch cond {
	case CondPriceAboveMA20:
		return l.close > l.ma20 && l.ma20 > 0
	case CondPriceBelowMA20:
		return l.close < l.ma20 && l.ma20 > 0
	case CondKDGoldenCross:
		return l.prevK < l.prevD && l.k >= l.d
	case CondKDDeathCross:
		return l.prevK > l.prevD && l.k <= l.d
	case CondMACDHistogramPositive:
		return l.hist > 0
	case CondMACDGoldenCross:
		return l.prevMACD < l.prevSignal && l.macd >= l.signal
	case CondMACDEntangle:
		// 柱狀圖連續四根貼近零軸 → 多空糾纏
		if len(l.histTail) < entangleWindow || l.close <= 0 {
			return false
		}
		bound := l.close * entangleRatio
		for _, h := range l.histTail {
			if h >= bound || h <= -bound {
				return false
			}
		}
		return true
	default:
		return false
	}
}

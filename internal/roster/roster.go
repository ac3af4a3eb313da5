package roster

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// maxSearchResults caps fuzzy search output.
const maxSearchResults = 20

// Roster is the daily-refreshed list of listed stocks (上市/上櫃).
// ⭐ SSOT: 股票清單只存這一份，一天更新一次
//
// One slot, one lock. The lock is held across the whole
// check-and-refresh so that concurrent callers hitting an empty or
// stale roster share a single upstream call instead of firing N of
// them; the cold-start window is exactly when the whole dashboard
// asks for the list at once.
type Roster struct {
	mu        sync.Mutex
	stocks    []finmind.StockInfo
	fetchedAt time.Time
	ttl       time.Duration

	client *finmind.Client
	logger *logger.Logger

	now func() time.Time
}

// New creates a roster backed by the FinMind stock info dataset.
func New(client *finmind.Client, ttl time.Duration, log *logger.Logger) *Roster {
	return &Roster{
		ttl:    ttl,
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// stocksLocked returns the roster, refreshing it when empty or older
// than the TTL. Caller observes whatever the refresh produced: a
// failed refresh leaves the previous (possibly empty) list in place.
func (r *Roster) stocksLocked(ctx context.Context) []finmind.StockInfo {
	if len(r.stocks) > 0 && r.now().Sub(r.fetchedAt) < r.ttl {
		return r.stocks
	}

	infos := r.client.FetchStockInfo(ctx)
	if len(infos) == 0 {
		r.logger.Warn("Stock roster refresh returned nothing")
		return r.stocks
	}

	// 只留上市/上櫃
	filtered := make([]finmind.StockInfo, 0, len(infos))
	for _, info := range infos {
		if info.Type == "twse" || info.Type == "tpex" {
			filtered = append(filtered, info)
		}
	}

	r.stocks = filtered
	r.fetchedAt = r.now()
	r.logger.WithField("count", len(filtered)).Info("Stock roster refreshed")

	return r.stocks
}

// Refresh forces a refresh attempt regardless of age. Used by the
// daily scheduler job.
func (r *Roster) Refresh(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fetchedAt = time.Time{}
	r.stocksLocked(ctx)
}

// Available reports whether the roster currently holds any stocks.
func (r *Roster) Available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.stocksLocked(ctx)) > 0
}

// Search returns up to 20 stocks whose id or name contains the query,
// case-insensitively.
func (r *Roster) Search(ctx context.Context, query string) []finmind.StockInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	results := make([]finmind.StockInfo, 0, maxSearchResults)
	for _, s := range r.stocksLocked(ctx) {
		if strings.Contains(strings.ToLower(s.StockID), query) ||
			strings.Contains(strings.ToLower(s.StockName), query) {
			results = append(results, s)
			if len(results) >= maxSearchResults {
				break
			}
		}
	}
	return results
}

// Name returns the display name for a stock id, or "" when unknown.
func (r *Roster) Name(ctx context.Context, stockID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.stocksLocked(ctx) {
		if s.StockID == stockID {
			return s.StockName
		}
	}
	return ""
}

// ExchangeType maps a stock id to the TWSE quote API exchange prefix:
// "tse" for 上市, "otc" for 上櫃. Unknown ids default to "tse".
func (r *Roster) ExchangeType(ctx context.Context, stockID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.stocksLocked(ctx) {
		if s.StockID == stockID {
			if s.Type == "tpex" {
				return "otc"
			}
			return "tse"
		}
	}
	return "tse"
}

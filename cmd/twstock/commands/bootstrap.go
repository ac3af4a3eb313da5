package commands

import (
	"fmt"
	"time"

	"github.com/ycwu/twstock/backend/internal/cache"
	"github.com/ycwu/twstock/backend/internal/external/finmind"
	"github.com/ycwu/twstock/backend/internal/external/twse"
	"github.com/ycwu/twstock/backend/internal/external/yahoo"
	"github.com/ycwu/twstock/backend/internal/roster"
	"github.com/ycwu/twstock/backend/internal/screener"
	"github.com/ycwu/twstock/backend/pkg/config"
	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// app wires the shared component graph used by every command.
// ⭐ SSOT: 元件組裝只在這個函式
type app struct {
	cfg *config.Config
	log *logger.Logger

	finmind  *finmind.Client
	roster   *roster.Roster
	quotes   *twse.Client
	yahoo    *yahoo.Client
	screener *screener.Screener
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	httpClient := httputil.New(log)

	apiCache := cache.New(cfg.Cache.APIMaxSize, cfg.Cache.APITTL)
	quoteCache := cache.New(cfg.Cache.QuoteMaxSize, cfg.Cache.QuoteTTL)

	fm := finmind.NewClient(httpClient, apiCache, cfg.FinMind.BaseURL, cfg.FinMind.Token, log)
	r := roster.New(fm, cfg.Cache.RosterTTL, log)
	quotes := twse.NewClient(httpClient, quoteCache, r, cfg.TWSE.BaseURL, log)

	// 爬蟲限速，避免被 Yahoo 擋
	scrapeClient := httputil.New(log).WithRateLimit(2, 1)
	yh := yahoo.NewClient(scrapeClient, log, cfg.Yahoo.BaseURL)

	s := screener.New(fm, r, cfg.ScreenWorkers, log)

	return &app{
		cfg:      cfg,
		log:      log,
		finmind:  fm,
		roster:   r,
		quotes:   quotes,
		yahoo:    yh,
		screener: s,
	}, nil
}

// taipeiLocation returns the market timezone, falling back to a fixed
// +8 offset when the tz database is unavailable.
func taipeiLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}

package chip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
)

func rec(date, name string, buy, sell float64) finmind.InstitutionalRecord {
	return finmind.InstitutionalRecord{Date: date, Name: name, Buy: buy, Sell: sell}
}

func TestConsecutiveNetBuyStreak(t *testing.T) {
	records := []finmind.InstitutionalRecord{
		rec("2024-03-11", "Foreign_Investor", 100, 300), // net sell, breaks streak
		rec("2024-03-12", "Foreign_Investor", 500, 100),
		rec("2024-03-13", "Foreign_Investor", 400, 100),
		rec("2024-03-14", "Foreign_Investor", 300, 100),
	}

	got := ConsecutiveNet(records)
	assert.Equal(t, 3, got["外資"], "three consecutive net-buy days")
}

func TestConsecutiveNetSellStreakIsNegative(t *testing.T) {
	records := []finmind.InstitutionalRecord{
		rec("2024-03-13", "投信", 100, 400),
		rec("2024-03-14", "投信", 100, 500),
	}

	got := ConsecutiveNet(records)
	assert.Equal(t, -2, got["投信"])
}

func TestConsecutiveNetMergesSubAccountsPerDate(t *testing.T) {
	// Dealer appears as two rows per date (自行買賣 + 避險); the
	// pattern match must sum them before taking the sign.
	records := []finmind.InstitutionalRecord{
		rec("2024-03-14", "Dealer_self", 100, 0),
		rec("2024-03-14", "Dealer_Hedging", 50, 300),
	}

	got := ConsecutiveNet(records)
	assert.Equal(t, -1, got["自營商"], "summed net is -150, one sell day")
}

func TestConsecutiveNetFlatLastDay(t *testing.T) {
	records := []finmind.InstitutionalRecord{
		rec("2024-03-14", "外資", 200, 200),
	}

	got := ConsecutiveNet(records)
	assert.Equal(t, 0, got["外資"])
}

func TestConsecutiveNetMissingGroupOmitted(t *testing.T) {
	records := []finmind.InstitutionalRecord{
		rec("2024-03-14", "外資", 300, 100),
	}

	got := ConsecutiveNet(records)
	_, hasTrust := got["投信"]
	assert.False(t, hasTrust, "groups with no rows stay absent")
}

func TestShortMarginRatio(t *testing.T) {
	tests := []struct {
		name   string
		margin float64
		short  float64
		want   float64
	}{
		{"normal", 10000, 1234, 12.34},
		{"rounded", 30000, 1000, 3.33},
		{"zero margin balance", 0, 500, 0},
		{"zero short balance", 10000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortMarginRatio(tt.margin, tt.short))
		})
	}
}

func TestMergeNearestDateWithinWindow(t *testing.T) {
	samples := []HolderSample{
		{Date: "2024-03-15", MajorRatio: 70.5, DirectorMajorRatio: 75.2, RetailRatio: 12.1},
	}
	foreign := map[string]float64{"2024-03-12": 73.9} // 3 days back
	closes := map[string]float64{"2024-03-15": 780}

	rows := MergeHolderRatios(samples, foreign, closes)
	require.Len(t, rows, 1)

	assert.Equal(t, 73.9, rows[0].ForeignRatio, "matched 3 days back inside the 7-day window")
	assert.Equal(t, 780.0, rows[0].Price, "exact date match")
	assert.Equal(t, 70.5, rows[0].MajorRatio)
}

func TestMergeFallsBackToLatestEntry(t *testing.T) {
	samples := []HolderSample{{Date: "2024-03-15"}}
	// Nothing within 7 days back of 03-15; latest entry wins
	foreign := map[string]float64{
		"2024-02-02": 71.0,
		"2024-02-23": 72.5,
	}

	rows := MergeHolderRatios(samples, foreign, nil)
	require.Len(t, rows, 1)

	assert.Equal(t, 72.5, rows[0].ForeignRatio)
	assert.Equal(t, 0.0, rows[0].Price, "empty close mapping defaults to 0")
}

func TestMergeWindowBoundary(t *testing.T) {
	// Exactly 7 days back is still inside the window; 8 is not.
	in := map[string]float64{"2024-03-08": 50}
	out := map[string]float64{"2024-03-07": 60, "2024-01-01": 10}

	rows := MergeHolderRatios([]HolderSample{{Date: "2024-03-15"}}, in, out)
	require.Len(t, rows, 1)

	assert.Equal(t, 50.0, rows[0].ForeignRatio)
	assert.Equal(t, 60.0, rows[0].Price, "8 days back falls through to latest entry")
}

func TestMergeEmptyScrape(t *testing.T) {
	rows := MergeHolderRatios(nil, map[string]float64{"2024-03-15": 1}, nil)
	assert.Empty(t, rows)
}

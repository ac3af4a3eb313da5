package chip

import (
	"sort"
	"time"
)

// matchbackDays is how far back nearest-date matching searches before
// falling back to the side mapping's most recent entry. The scraped
// holder series settles weekly while trading data is daily, so exact
// date alignment almost never happens.
const matchbackDays = 7

// HolderSample is one scraped ownership-concentration record.
type HolderSample struct {
	Date               string
	MajorRatio         float64
	DirectorMajorRatio float64
	RetailRatio        float64
}

// HolderRatioRow is the merged per-week view the dashboard charts.
type HolderRatioRow struct {
	Date               string  `json:"date"`
	ForeignRatio       float64 `json:"foreign_ratio"`
	MajorRatio         float64 `json:"major_ratio"`
	DirectorMajorRatio float64 `json:"director_major_ratio"`
	RetailRatio        float64 `json:"retail_ratio"`
	Price              float64 `json:"price"`
}

// MergeHolderRatios joins the scraped series with two independently
// dated mappings, producing one row per scraped date. Each side value
// is resolved by nearestBack; an empty mapping contributes 0.
func MergeHolderRatios(samples []HolderSample, foreignByDate, closeByDate map[string]float64) []HolderRatioRow {
	rows := make([]HolderRatioRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, HolderRatioRow{
			Date:               s.Date,
			ForeignRatio:       nearestBack(s.Date, foreignByDate),
			MajorRatio:         s.MajorRatio,
			DirectorMajorRatio: s.DirectorMajorRatio,
			RetailRatio:        s.RetailRatio,
			Price:              nearestBack(s.Date, closeByDate),
		})
	}
	return rows
}

// nearestBack looks the date up in m, walking backward one calendar
// day at a time up to matchbackDays. When nothing in the window
// matches it falls back to the mapping's most recent entry; an empty
// mapping yields 0.
func nearestBack(date string, m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}

	day, err := time.Parse("2006-01-02", date)
	if err == nil {
		for i := 0; i <= matchbackDays; i++ {
			key := day.AddDate(0, 0, -i).Format("2006-01-02")
			if v, ok := m[key]; ok {
				return v
			}
		}
	}

	// Fall back to the latest entry the mapping has
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m[keys[len(keys)-1]]
}

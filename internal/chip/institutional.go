package chip

import (
	"sort"
	"strings"

	"github.com/ycwu/twstock/backend/internal/external/finmind"
)

// institutionGroups maps display names to the name patterns FinMind
// may use for the same institution (中文或英文格式都出現過).
var institutionGroups = []struct {
	display  string
	patterns []string
}{
	{"外資", []string{"外資", "Foreign"}},
	{"投信", []string{"投信", "Investment_Trust"}},
	{"自營商", []string{"自營商", "Dealer"}},
}

// ConsecutiveNet computes, per institution group, how many trading
// days in a row the group has been net buying (positive) or net
// selling (negative), counted backward from the most recent date.
// A flat last day yields 0 for that group.
func ConsecutiveNet(records []finmind.InstitutionalRecord) map[string]int {
	consecutive := make(map[string]int)

	for _, group := range institutionGroups {
		netByDate := make(map[string]float64)
		for _, rec := range records {
			if !matchesGroup(rec.Name, group.patterns) {
				continue
			}
			netByDate[rec.Date] += rec.Buy - rec.Sell
		}
		if len(netByDate) == 0 {
			continue
		}

		dates := make([]string, 0, len(netByDate))
		for d := range netByDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		last := netByDate[dates[len(dates)-1]]
		direction := 0
		if last > 0 {
			direction = 1
		} else if last < 0 {
			direction = -1
		}

		count := 0
		for i := len(dates) - 1; i >= 0; i-- {
			val := netByDate[dates[i]]
			if (direction > 0 && val > 0) || (direction < 0 && val < 0) {
				count++
			} else {
				break
			}
		}

		consecutive[group.display] = count * direction
	}

	return consecutive
}

func matchesGroup(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

package chip

import "math"

// ShortMarginRatio computes 券資比（%）: short balance over margin
// balance. A zero margin balance yields 0, not an error.
func ShortMarginRatio(marginBalance, shortBalance float64) float64 {
	if marginBalance <= 0 {
		return 0
	}
	return math.Round(shortBalance/marginBalance*100*100) / 100
}

package indicator

import (
	"math"
)

// Bar is one daily price bar, ordered by date ascending.
type Bar struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series holds the computed indicator columns, each aligned 1:1 with
// Date. nil marks an undefined value (warm-up period, division by
// zero); NaN/Inf never cross this boundary.
type Series struct {
	Date []string `json:"date"`

	MA5   []*float64 `json:"ma5"`
	MA10  []*float64 `json:"ma10"`
	MA20  []*float64 `json:"ma20"`
	MA60  []*float64 `json:"ma60"`
	MA120 []*float64 `json:"ma120"`

	RSI []*float64 `json:"rsi"`

	MACD          []*float64 `json:"macd"`
	MACDSignal    []*float64 `json:"macd_signal"`
	MACDHistogram []*float64 `json:"macd_histogram"`

	K []*float64 `json:"k"`
	D []*float64 `json:"d"`

	BBUpper  []*float64 `json:"bb_upper"`
	BBMiddle []*float64 `json:"bb_middle"`
	BBLower  []*float64 `json:"bb_lower"`

	OBV []*float64 `json:"obv"`

	VWAP []*float64 `json:"vwap"`

	ADX     []*float64 `json:"adx"`
	DIPlus  []*float64 `json:"di_plus"`
	DIMinus []*float64 `json:"di_minus"`

	WilliamsR []*float64 `json:"williams_r"`

	Bias5  []*float64 `json:"bias5"`
	Bias10 []*float64 `json:"bias10"`
	Bias20 []*float64 `json:"bias20"`

	ATR []*float64 `json:"atr"`
}

// Len returns the number of rows in the series.
func (s *Series) Len() int {
	return len(s.Date)
}

// Compute calculates the full indicator set over bars, then trims the
// leading warm-up so the first returned date is the first input date
// >= startDate. startDate == "" keeps everything. Caller is expected
// to have fetched ~120 extra lead-in days so windowed indicators are
// stable by the requested range.
func Compute(bars []Bar, startDate string) *Series {
	n := len(bars)
	if n == 0 {
		return &Series{}
	}

	date := make([]string, n)
	closePx := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		date[i] = b.Date
		closePx[i] = b.Close
		high[i] = b.High
		low[i] = b.Low
		volume[i] = b.Volume
	}

	s := &Series{Date: date}

	s.MA5 = column(sma(closePx, 5), 2)
	s.MA10 = column(sma(closePx, 10), 2)
	ma20 := sma(closePx, 20)
	s.MA20 = column(ma20, 2)
	s.MA60 = column(sma(closePx, 60), 2)
	s.MA120 = column(sma(closePx, 120), 2)

	s.RSI = column(rsi(closePx, 14), 2)

	macdLine, signal, histogram := macd(closePx, 12, 26, 9)
	s.MACD = column(macdLine, 2)
	s.MACDSignal = column(signal, 2)
	s.MACDHistogram = column(histogram, 2)

	k, d := stochastic(high, low, closePx, 9, 3)
	s.K = column(k, 2)
	s.D = column(d, 2)

	upper, middle, lower := bollinger(closePx, 20, 2)
	s.BBUpper = column(upper, 2)
	s.BBMiddle = column(middle, 2)
	s.BBLower = column(lower, 2)

	s.OBV = column(obv(closePx, volume), 0)

	s.VWAP = column(vwap(high, low, closePx, volume, 20), 2)

	adxVals, diPlus, diMinus := dmi(high, low, closePx, 14)
	s.ADX = column(adxVals, 2)
	s.DIPlus = column(diPlus, 2)
	s.DIMinus = column(diMinus, 2)

	s.WilliamsR = column(williamsR(high, low, closePx, 14), 2)

	s.Bias5 = column(bias(closePx, 5), 2)
	s.Bias10 = column(bias(closePx, 10), 2)
	s.Bias20 = column(bias(closePx, 20), 2)

	s.ATR = column(atr(high, low, closePx, 14), 2)

	if startDate != "" {
		s.trim(startDate)
	}
	return s
}

// trim drops every row before the first date >= startDate. One index
// for all columns so they stay aligned.
func (s *Series) trim(startDate string) {
	start := 0
	for i, d := range s.Date {
		if d >= startDate {
			start = i
			break
		}
	}

	s.Date = s.Date[start:]
	for _, col := range []*[]*float64{
		&s.MA5, &s.MA10, &s.MA20, &s.MA60, &s.MA120,
		&s.RSI,
		&s.MACD, &s.MACDSignal, &s.MACDHistogram,
		&s.K, &s.D,
		&s.BBUpper, &s.BBMiddle, &s.BBLower,
		&s.OBV,
		&s.VWAP,
		&s.ADX, &s.DIPlus, &s.DIMinus,
		&s.WilliamsR,
		&s.Bias5, &s.Bias10, &s.Bias20,
		&s.ATR,
	} {
		*col = (*col)[start:]
	}
}

// column converts a raw float series into the nullable output form:
// NaN/Inf become nil, everything else is rounded to the given digits.
func column(vals []float64, digits int) []*float64 {
	out := make([]*float64, len(vals))
	pow := math.Pow(10, float64(digits))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		r := math.Round(v*pow) / pow
		out[i] = &r
	}
	return out
}

// ---- individual indicators ----
// All helpers return full-length slices with NaN in warm-up positions.

// sma is a simple moving average.
func sma(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if len(vals) < period {
		return out
	}

	var sum float64
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema seeds with the SMA of the first period values, then applies the
// standard 2/(n+1) smoothing. Defined from index period-1.
func ema(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if len(vals) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += vals[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev

	alpha := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(vals); i++ {
		prev = alpha*vals[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// rsi is Wilder's relative strength index.
func rsi(closePx []float64, period int) []float64 {
	out := nanSlice(len(closePx))
	if len(closePx) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closePx[i] - closePx[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closePx); i++ {
		change := closePx[i] - closePx[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// macd returns the MACD line (fast EMA − slow EMA), the signal line
// (EMA of the MACD line) and the histogram.
func macd(closePx []float64, fast, slow, signalPeriod int) (macdLine, signal, histogram []float64) {
	n := len(closePx)
	emaFast := ema(closePx, fast)
	emaSlow := ema(closePx, slow)

	macdLine = nanSlice(n)
	for i := range macdLine {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			macdLine[i] = emaFast[i] - emaSlow[i]
		}
	}

	// Signal EMA runs over the defined tail of the MACD line
	signal = nanSlice(n)
	if n >= slow {
		tail := ema(macdLine[slow-1:], signalPeriod)
		copy(signal[slow-1:], tail)
	}

	histogram = nanSlice(n)
	for i := range histogram {
		if !math.IsNaN(macdLine[i]) && !math.IsNaN(signal[i]) {
			histogram[i] = macdLine[i] - signal[i]
		}
	}
	return macdLine, signal, histogram
}

// stochastic returns KD: raw %K over kPeriod highs/lows, %D as the
// dSmooth-day SMA of %K.
func stochastic(high, low, closePx []float64, kPeriod, dSmooth int) (k, d []float64) {
	n := len(closePx)
	k = nanSlice(n)

	for i := kPeriod - 1; i < n; i++ {
		hh := high[i]
		ll := low[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			continue // flat window, undefined
		}
		k[i] = (closePx[i] - ll) / (hh - ll) * 100
	}

	d = nanAwareSMA(k, dSmooth)
	return k, d
}

// bollinger returns the 2σ bands around a 20-day SMA. Population
// standard deviation, matching the chart frontend's expectation.
func bollinger(closePx []float64, period int, width float64) (upper, middle, lower []float64) {
	n := len(closePx)
	middle = sma(closePx, period)
	upper = nanSlice(n)
	lower = nanSlice(n)

	for i := period - 1; i < n; i++ {
		mean := middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := closePx[j] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mean + width*sd
		lower[i] = mean - width*sd
	}
	return upper, middle, lower
}

// obv is the cumulative on-balance volume.
func obv(closePx, volume []float64) []float64 {
	n := len(closePx)
	out := nanSlice(n)
	if n == 0 {
		return out
	}

	running := volume[0]
	out[0] = running
	for i := 1; i < n; i++ {
		switch {
		case closePx[i] > closePx[i-1]:
			running += volume[i]
		case closePx[i] < closePx[i-1]:
			running -= volume[i]
		}
		out[i] = running
	}
	return out
}

// vwap is the rolling volume-weighted average of the typical price.
// The window shrinks at the head (min one bar) rather than yielding
// undefined values, matching the charting variant in production.
func vwap(high, low, closePx, volume []float64, window int) []float64 {
	n := len(closePx)
	out := nanSlice(n)

	var sumPV, sumV float64
	for i := 0; i < n; i++ {
		tp := (high[i] + low[i] + closePx[i]) / 3
		sumPV += tp * volume[i]
		sumV += volume[i]
		if i >= window {
			tpOld := (high[i-window] + low[i-window] + closePx[i-window]) / 3
			sumPV -= tpOld * volume[i-window]
			sumV -= volume[i-window]
		}
		if sumV != 0 {
			out[i] = sumPV / sumV
		}
	}
	return out
}

// dmi computes Wilder's directional movement system: ADX, DI+ and DI−
// over the given period.
func dmi(high, low, closePx []float64, period int) (adx, diPlus, diMinus []float64) {
	n := len(closePx)
	adx = nanSlice(n)
	diPlus = nanSlice(n)
	diMinus = nanSlice(n)
	if n <= period {
		return adx, diPlus, diMinus
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = trueRange(high[i], low[i], closePx[i-1])

		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// Wilder smoothing: seed with the plain sum of the first period
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(n)
	writeDI := func(i int) {
		if smTR == 0 {
			return
		}
		p := 100 * smPlus / smTR
		m := 100 * smMinus / smTR
		diPlus[i] = p
		diMinus[i] = m
		if p+m != 0 {
			dx[i] = 100 * math.Abs(p-m) / (p + m)
		}
	}

	writeDI(period)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		writeDI(i)
	}

	// ADX: Wilder average of DX, seeded at 2*period-1... the first
	// period DX values averaged, then smoothed.
	if n <= 2*period-1 {
		return adx, diPlus, diMinus
	}

	var sum float64
	count := 0
	for i := period; i < 2*period; i++ {
		if !math.IsNaN(dx[i]) {
			sum += dx[i]
			count++
		}
	}
	if count == 0 {
		return adx, diPlus, diMinus
	}
	prev := sum / float64(count)
	adx[2*period-1] = prev

	for i := 2 * period; i < n; i++ {
		cur := dx[i]
		if math.IsNaN(cur) {
			cur = 0
		}
		prev = (prev*float64(period-1) + cur) / float64(period)
		adx[i] = prev
	}
	return adx, diPlus, diMinus
}

// williamsR is Williams %R over the lookback period; -100..0.
func williamsR(high, low, closePx []float64, period int) []float64 {
	n := len(closePx)
	out := nanSlice(n)

	for i := period - 1; i < n; i++ {
		hh := high[i]
		ll := low[i]
		for j := i - period + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			continue
		}
		out[i] = (hh - closePx[i]) / (hh - ll) * -100
	}
	return out
}

// bias is the percentage deviation of close from its moving average
// (乖離率). Zero MA degrades to undefined, not a crash.
func bias(closePx []float64, period int) []float64 {
	ma := sma(closePx, period)
	out := nanSlice(len(closePx))
	for i := range closePx {
		if math.IsNaN(ma[i]) || ma[i] == 0 {
			continue
		}
		out[i] = (closePx[i] - ma[i]) / ma[i] * 100
	}
	return out
}

// atr is Wilder's average true range.
func atr(high, low, closePx []float64, period int) []float64 {
	n := len(closePx)
	out := nanSlice(n)
	if n < period {
		return out
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		tr[i] = trueRange(high[i], low[i], closePx[i-1])
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev

	for i := period; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// nanAwareSMA averages only fully-defined windows.
func nanAwareSMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	for i := period - 1; i < len(vals); i++ {
		var sum float64
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			sum += vals[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

package indicators

import (
	"math"

	"github.com/ducminhle1904/crypto-oracle-bot/pkg/types"
)

// ADXResult carries trend strength with the directional indices it was built from.
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX measures trend strength on a 0-100 scale. True range and directional
// movement are smoothed with a rolling mean of period values, and ADX is the
// rolling mean of the last period DX values. Needs 2*period candles.
func ADX(candles []types.OHLCV, period int) (ADXResult, error) {
	if period <= 0 || len(candles) < 2*period {
		return ADXResult{}, ErrInsufficientData
	}

	n := len(candles)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		cur, prev := candles[i], candles[i-1]
		tr[i] = math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// DX is defined from index period onward (window of period values starting at 1).
	var dx []float64
	var last ADXResult
	for i := period; i < n; i++ {
		lo := i - period + 1
		trAvg := mean(tr[lo : i+1])
		if trAvg == 0 {
			dx = append(dx, 0)
			continue
		}
		pdi := mean(plusDM[lo:i+1]) / trAvg * 100
		mdi := mean(minusDM[lo:i+1]) / trAvg * 100
		v := 0.0
		if sum := pdi + mdi; sum != 0 {
			v = math.Abs(pdi-mdi) / sum * 100
		}
		dx = append(dx, v)
		last.PlusDI, last.MinusDI = pdi, mdi
	}

	if len(dx) < period {
		return ADXResult{}, ErrInsufficientData
	}
	last.ADX = mean(dx[len(dx)-period:])
	return last, nil
}

// IsTrending reports ADX above threshold.
func (r ADXResult) IsTrending(threshold float64) bool {
	return r.ADX > threshold
}

package strategy

import (
	"fmt"
	"math"

	"oanda-trading-bot/internal/broker"
)

// CalculateATR returns the Average True Range over period candles using the
// standard true-range definition:
//
//	TR = max(high-low, |high-prevClose|, |low-prevClose|)
//
// Needs period+1 candles for the first previous close.
func CalculateATR(candles []broker.Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, fmt.Errorf("need at least %d candles for ATR(%d), got %d", period+1, period, len(candles))
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trueRanges = append(trueRanges, tr)
	}

	recent := trueRanges[len(trueRanges)-period:]
	sum := 0.0
	for _, tr := range recent {
		sum += tr
	}
	return sum / float64(period), nil
}

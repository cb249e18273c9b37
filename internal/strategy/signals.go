package strategy

import (
	"fmt"
	"math"
	"sort"

	"oanda-trading-bot/internal/broker"
)

// wickRatio is the minimum wick-to-body ratio for a genuine rejection wick.
const wickRatio = 1.0

// touchTolerancePips is how far outside a candle's range a zone may sit and
// still count as touched.
const touchTolerancePips = 15.0

func isRejectionWickBuy(c broker.Candle) bool {
	body := math.Abs(c.Close - c.Open)
	if body == 0 {
		// Doji: the whole lower range is wick.
		return c.Close-c.Low > 0
	}
	lowerWick := math.Min(c.Open, c.Close) - c.Low
	return lowerWick > wickRatio*body
}

func isRejectionWickSell(c broker.Candle) bool {
	body := math.Abs(c.Close - c.Open)
	if body == 0 {
		return c.High-c.Close > 0
	}
	upperWick := c.High - math.Max(c.Open, c.Close)
	return upperWick > wickRatio*body
}

func candleTouchesZone(c broker.Candle, zone SRZone) bool {
	tolerance := touchTolerancePips * defaultPipValue
	return c.Low-tolerance <= zone.Price && zone.Price <= c.High+tolerance
}

// EvaluateSignal inspects the latest H4 candle for a rejection-wick setup at
// one of the zones. Direction comes from the zone's dynamic role: a close at
// or above the zone means it is acting as support right now (buy on a
// bullish wick), a close below means resistance (sell on a bearish wick).
// This captures role-reversal — broken resistance trading as support.
//
// Returns the signal and the zone that triggered it, or nil.
func EvaluateSignal(h4 []broker.Candle, zones []SRZone) (*Signal, *SRZone) {
	if len(h4) == 0 || len(zones) == 0 {
		return nil, nil
	}
	candle := h4[len(h4)-1]

	var touched []SRZone
	for _, z := range zones {
		if candleTouchesZone(candle, z) {
			touched = append(touched, z)
		}
	}
	if len(touched) == 0 {
		return nil, nil
	}

	sort.Slice(touched, func(i, j int) bool {
		return math.Abs(touched[i].Price-candle.Close) < math.Abs(touched[j].Price-candle.Close)
	})

	for _, zone := range touched {
		zone := zone
		if candle.Close >= zone.Price && isRejectionWickBuy(candle) {
			role := "support"
			if zone.Type != "support" {
				role = "flipped support"
			}
			return &Signal{
				Direction:  "buy",
				EntryPrice: candle.Close,
				CandleTime: candle.Time,
				Reason:     fmt.Sprintf("Bullish rejection wick at %s %.5f", role, zone.Price),
			}, &zone
		}
		if candle.Close < zone.Price && isRejectionWickSell(candle) {
			role := "resistance"
			if zone.Type != "resistance" {
				role = "flipped resistance"
			}
			return &Signal{
				Direction:  "sell",
				EntryPrice: candle.Close,
				CandleTime: candle.Time,
				Reason:     fmt.Sprintf("Bearish rejection wick at %s %.5f", role, zone.Price),
			}, &zone
		}
	}
	return nil, nil
}

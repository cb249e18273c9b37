package strategy

import (
	"math"
	"sort"

	"oanda-trading-bot/internal/broker"
)

// SRZone is a horizontal support or resistance level detected from daily
// candles. Strength counts how many swing points cluster at the level.
type SRZone struct {
	Type     string  `json:"type"` // "support" or "resistance"
	Price    float64 `json:"price"`
	Strength int     `json:"strength"`
}

const (
	zoneLookback      = 50
	swingWindow       = 3
	clusterTolerance  = 20.0 // pips
	defaultPipValue   = 0.0001
)

// DetectZones finds S/R zones in the most recent daily candles: swing highs
// and lows within a ±swingWindow neighbourhood, clustered by proximity.
// Returned sorted by price.
func DetectZones(candles []broker.Candle) []SRZone {
	recent := candles
	if len(recent) > zoneLookback {
		recent = recent[len(recent)-zoneLookback:]
	}

	highs := findSwingHighs(recent, swingWindow)
	lows := findSwingLows(recent, swingWindow)

	var zones []SRZone
	for _, cluster := range clusterLevels(highs, clusterTolerance) {
		zones = append(zones, SRZone{Type: "resistance", Price: round5(cluster.price), Strength: cluster.count})
	}
	for _, cluster := range clusterLevels(lows, clusterTolerance) {
		zones = append(zones, SRZone{Type: "support", Price: round5(cluster.price), Strength: cluster.count})
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Price < zones[j].Price })
	return zones
}

// ZoneLevels extracts the price levels for the risk calculator.
func ZoneLevels(zones []SRZone) []float64 {
	levels := make([]float64, len(zones))
	for i, z := range zones {
		levels[i] = z.Price
	}
	return levels
}

func findSwingHighs(candles []broker.Candle, window int) []float64 {
	var highs []float64
	for i := window; i < len(candles)-window; i++ {
		high := candles[i].High
		isSwing := true
		for j := 1; j <= window; j++ {
			if candles[i-j].High >= high || candles[i+j].High >= high {
				isSwing = false
				break
			}
		}
		if isSwing {
			highs = append(highs, high)
		}
	}
	return highs
}

func findSwingLows(candles []broker.Candle, window int) []float64 {
	var lows []float64
	for i := window; i < len(candles)-window; i++ {
		low := candles[i].Low
		isSwing := true
		for j := 1; j <= window; j++ {
			if candles[i-j].Low <= low || candles[i+j].Low <= low {
				isSwing = false
				break
			}
		}
		if isSwing {
			lows = append(lows, low)
		}
	}
	return lows
}

type levelCluster struct {
	price float64
	count int
}

// clusterLevels groups levels lying within tolerancePips of each other and
// averages each group.
func clusterLevels(levels []float64, tolerancePips float64) []levelCluster {
	if len(levels) == 0 {
		return nil
	}
	tolerance := tolerancePips * defaultPipValue

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	var clusters []levelCluster
	sum, count, last := sorted[0], 1, sorted[0]
	for _, level := range sorted[1:] {
		if math.Abs(level-last) <= tolerance {
			sum += level
			count++
		} else {
			clusters = append(clusters, levelCluster{price: sum / float64(count), count: count})
			sum, count = level, 1
		}
		last = level
	}
	clusters = append(clusters, levelCluster{price: sum / float64(count), count: count})
	return clusters
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

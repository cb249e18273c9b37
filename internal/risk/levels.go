package risk

import (
	"errors"
	"fmt"
	"math"
)

// ATR multiplier bounds for stop/target placement. A target closer than
// MinTPATRMult×ATR is not worth taking; a derived stop tighter than
// MinSLATRMult×ATR gets the setup rejected; a stop wider than
// MaxSLATRMult×ATR is clamped (effective reward:risk improves, which is
// accepted).
const (
	MinTPATRMult = 1.0
	MinSLATRMult = 0.5
	MaxSLATRMult = 2.0

	// DefaultRRRatio is used when the stream config carries no override.
	DefaultRRRatio = 2.0
)

// Source tags explain which branch produced the levels.
const (
	SourceZone        = "zone"
	SourceATRFallback = "atr_fallback"
)

// ErrNoValidSetup means the nearest structural target would force a stop
// too tight to be meaningful; the signal should be discarded.
var ErrNoValidSetup = errors.New("no valid risk setup")

// Levels is the output of the zone-anchored calculation.
type Levels struct {
	StopPrice   float64
	TargetPrice float64
	Source      string
}

// CalculateLevels places the take-profit at the nearest useful structural
// zone and derives the stop from the desired reward:risk ratio, falling back
// to pure ATR-scaled levels when no zone sits in the profit direction.
//
// Zone-anchored branch: candidate zones strictly beyond entry in the profit
// direction and at least MinTPATRMult×ATR away are considered; the nearest
// wins. The stop distance is targetDistance/rrRatio, bounded by the ATR
// multipliers above. The zone that triggered the signal is excluded from
// candidacy — taking profit at the level just traded off makes no sense.
//
// Fallback branch: stop = MaxSLATRMult×ATR, target = rrRatio×stop.
func CalculateLevels(entry float64, direction string, zoneLevels []float64, triggerLevel, atr, rrRatio float64) (*Levels, error) {
	if direction != "buy" && direction != "sell" {
		return nil, fmt.Errorf("direction must be 'buy' or 'sell', got %q", direction)
	}
	if entry <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %g", entry)
	}
	if atr <= 0 {
		return nil, fmt.Errorf("atr must be positive, got %g", atr)
	}
	if rrRatio <= 0 {
		rrRatio = DefaultRRRatio
	}

	sign := 1.0
	if direction == "sell" {
		sign = -1.0
	}

	// Nearest zone beyond entry in the profit direction, at least one ATR
	// multiple away, excluding the triggering zone.
	bestDist := math.Inf(1)
	found := false
	for _, level := range zoneLevels {
		if level == triggerLevel {
			continue
		}
		dist := sign * (level - entry)
		if dist < MinTPATRMult*atr {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			found = true
		}
	}

	if !found {
		stopDist := MaxSLATRMult * atr
		return &Levels{
			StopPrice:   round5(entry - sign*stopDist),
			TargetPrice: round5(entry + sign*rrRatio*stopDist),
			Source:      SourceATRFallback,
		}, nil
	}

	stopDist := bestDist / rrRatio
	if stopDist < MinSLATRMult*atr {
		return nil, fmt.Errorf("%w: target %.5f away implies a %.5f stop under the %.5f floor",
			ErrNoValidSetup, bestDist, stopDist, MinSLATRMult*atr)
	}
	if stopDist > MaxSLATRMult*atr {
		stopDist = MaxSLATRMult * atr
	}

	return &Levels{
		StopPrice:   round5(entry - sign*stopDist),
		TargetPrice: round5(entry + sign*bestDist),
		Source:      SourceZone,
	}, nil
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

package risk

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestZoneAnchoredBuy(t *testing.T) {
	// Candidate at 1.0900 is 70 pips above entry, well past 1×ATR. Derived
	// stop distance 0.0035 sits under the 2×ATR cap, so it is kept as is.
	levels, err := CalculateLevels(1.0830, "buy", []float64{1.0800, 1.0900}, 1.0800, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceZone {
		t.Errorf("source = %q, want %q", levels.Source, SourceZone)
	}
	if !almostEqual(levels.TargetPrice, 1.0900) {
		t.Errorf("target = %v, want 1.0900", levels.TargetPrice)
	}
	if !almostEqual(levels.StopPrice, 1.0795) {
		t.Errorf("stop = %v, want 1.0795", levels.StopPrice)
	}
}

func TestTooCloseZoneFallsBackToATR(t *testing.T) {
	// 1.0835 is only 5 pips away, under minTP of 1×ATR (20 pips), so the
	// zone branch yields nothing and the ATR fallback applies.
	levels, err := CalculateLevels(1.0830, "buy", []float64{1.0800, 1.0835}, 1.0800, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceATRFallback {
		t.Errorf("source = %q, want %q", levels.Source, SourceATRFallback)
	}
	wantStop := 1.0830 - 2.0*0.0020
	wantTarget := 1.0830 + 2.0*(2.0*0.0020)
	if !almostEqual(levels.StopPrice, wantStop) {
		t.Errorf("stop = %v, want %v", levels.StopPrice, wantStop)
	}
	if !almostEqual(levels.TargetPrice, wantTarget) {
		t.Errorf("target = %v, want %v", levels.TargetPrice, wantTarget)
	}
}

func TestTightDerivedStopRejectsSetup(t *testing.T) {
	// Zone 20 pips away with rr 25 derives a stop under 0.5×ATR; that is a
	// degenerate setup, not a tradeable one.
	_, err := CalculateLevels(1.0830, "buy", []float64{1.0850}, 1.0800, 0.0020, 25.0)
	if !errors.Is(err, ErrNoValidSetup) {
		t.Fatalf("expected ErrNoValidSetup, got %v", err)
	}
}

func TestWideDerivedStopIsClampedNotRejected(t *testing.T) {
	// Zone 100 pips away at rr 2 would derive a 50 pip stop, above the
	// 2×ATR (40 pip) cap; the stop clamps and effective rr improves.
	levels, err := CalculateLevels(1.0830, "buy", []float64{1.0930}, 1.0800, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceZone {
		t.Errorf("source = %q, want %q", levels.Source, SourceZone)
	}
	if !almostEqual(levels.StopPrice, 1.0830-0.0040) {
		t.Errorf("stop = %v, want %v", levels.StopPrice, 1.0830-0.0040)
	}
	if !almostEqual(levels.TargetPrice, 1.0930) {
		t.Errorf("target = %v, want 1.0930", levels.TargetPrice)
	}
}

func TestZoneAnchoredSell(t *testing.T) {
	levels, err := CalculateLevels(1.0830, "sell", []float64{1.0900, 1.0760}, 1.0900, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceZone {
		t.Errorf("source = %q, want %q", levels.Source, SourceZone)
	}
	if !almostEqual(levels.TargetPrice, 1.0760) {
		t.Errorf("target = %v, want 1.0760", levels.TargetPrice)
	}
	// 70 pips target / rr 2 = 35 pip stop, above entry for a sell.
	if !almostEqual(levels.StopPrice, 1.0865) {
		t.Errorf("stop = %v, want 1.0865", levels.StopPrice)
	}
}

func TestTriggeringZoneIsExcludedFromCandidacy(t *testing.T) {
	// The only zone in the profit direction is the trigger itself, so the
	// calculation must fall back instead of targeting it.
	levels, err := CalculateLevels(1.0830, "buy", []float64{1.0900}, 1.0900, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceATRFallback {
		t.Errorf("source = %q, want %q", levels.Source, SourceATRFallback)
	}
}

func TestNoZonesInProfitDirection(t *testing.T) {
	levels, err := CalculateLevels(1.0830, "buy", []float64{1.0800, 1.0750}, 1.0800, 0.0020, 2.0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	if levels.Source != SourceATRFallback {
		t.Errorf("source = %q, want %q", levels.Source, SourceATRFallback)
	}
}

func TestCalculateLevelsRejectsBadInputs(t *testing.T) {
	if _, err := CalculateLevels(1.0830, "hold", nil, 0, 0.0020, 2.0); err == nil {
		t.Error("invalid direction should be rejected")
	}
	if _, err := CalculateLevels(1.0830, "buy", nil, 0, 0, 2.0); err == nil {
		t.Error("zero atr should be rejected")
	}
	if _, err := CalculateLevels(0, "buy", nil, 0, 0.0020, 2.0); err == nil {
		t.Error("zero entry should be rejected")
	}
}

func TestZeroRRRatioUsesDefault(t *testing.T) {
	levels, err := CalculateLevels(1.0830, "buy", nil, 0, 0.0020, 0)
	if err != nil {
		t.Fatalf("CalculateLevels failed: %v", err)
	}
	// Fallback with the default 2.0 ratio.
	if !almostEqual(levels.TargetPrice, 1.0830+2.0*(2.0*0.0020)) {
		t.Errorf("default rr not applied, target = %v", levels.TargetPrice)
	}
}

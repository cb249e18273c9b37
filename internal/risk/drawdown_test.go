package risk

import "testing"

func TestNewDrawdownTrackerRejectsNonPositiveEquity(t *testing.T) {
	for _, equity := range []float64{0, -100} {
		if _, err := NewDrawdownTracker(equity, 10); err == nil {
			t.Errorf("equity %g should be rejected", equity)
		}
	}
}

func TestPeakNeverDecreases(t *testing.T) {
	d, err := NewDrawdownTracker(10000, 10)
	if err != nil {
		t.Fatal(err)
	}

	sequence := []float64{10500, 9800, 11000, 9000, 10999, 12000}
	for _, equity := range sequence {
		prevPeak := d.PeakEquity()
		d.Update(equity)
		if d.PeakEquity() < prevPeak {
			t.Fatalf("peak decreased from %g to %g after Update(%g)", prevPeak, d.PeakEquity(), equity)
		}
		if d.PeakEquity() < equity {
			t.Fatalf("peak %g below observed equity %g", d.PeakEquity(), equity)
		}
		if d.CurrentEquity() != equity {
			t.Fatalf("current equity = %g, want %g", d.CurrentEquity(), equity)
		}
	}
	if d.PeakEquity() != 12000 {
		t.Errorf("final peak = %g, want 12000", d.PeakEquity())
	}
}

func TestDrawdownPct(t *testing.T) {
	d, _ := NewDrawdownTracker(10000, 10)
	d.Update(9000)
	if got := d.DrawdownPct(); got != 10.0 {
		t.Errorf("drawdown = %g, want 10.0", got)
	}
	d.Update(10000)
	if got := d.DrawdownPct(); got != 0.0 {
		t.Errorf("drawdown after recovery = %g, want 0", got)
	}
}

func TestCircuitBreakerTripsAtThresholdBoundary(t *testing.T) {
	d, _ := NewDrawdownTracker(10000, 10)

	d.Update(9001)
	if d.CircuitBreakerActive() {
		t.Error("breaker active below threshold")
	}

	// Exactly 10% drawdown — the boundary trips it.
	d.Update(9000)
	if !d.CircuitBreakerActive() {
		t.Error("breaker must trip at exactly the threshold")
	}

	// Recovery above the peak-minus-threshold line releases it.
	d.Update(9500)
	if d.CircuitBreakerActive() {
		t.Error("breaker should release once equity recovers")
	}
}

func TestZeroTrackerRunsDegraded(t *testing.T) {
	d := NewZeroTracker(10)
	if d.DrawdownPct() != 0 {
		t.Errorf("zero-equity drawdown should clamp to 0, got %g", d.DrawdownPct())
	}
	if d.CircuitBreakerActive() {
		t.Error("degraded tracker must not start with the breaker tripped")
	}

	// First real observation seeds the peak.
	d.Update(10000)
	if d.PeakEquity() != 10000 {
		t.Errorf("peak = %g, want 10000", d.PeakEquity())
	}
}

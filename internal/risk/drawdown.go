// Package risk holds the pure-math pieces of the trading core: drawdown
// tracking, position sizing, and stop/target placement. Nothing in here does
// I/O; every function is deterministic over its inputs.
package risk

import (
	"fmt"
	"sync"
)

// DrawdownTracker tracks peak equity and trips the circuit breaker when the
// drawdown from peak reaches the configured threshold. One instance per
// stream, updated by the stream's cycle and read by status reporting, so
// access is lock-protected. The breaker is not a latch flag: it stays
// active until equity recovers above the peak-minus-threshold line.
type DrawdownTracker struct {
	mu             sync.RWMutex
	peakEquity     float64
	currentEquity  float64
	maxDrawdownPct float64
}

// NewDrawdownTracker seeds a tracker from the first observed equity.
func NewDrawdownTracker(initialEquity, maxDrawdownPct float64) (*DrawdownTracker, error) {
	if initialEquity <= 0 {
		return nil, fmt.Errorf("initial equity must be positive, got %g", initialEquity)
	}
	return &DrawdownTracker{
		peakEquity:     initialEquity,
		currentEquity:  initialEquity,
		maxDrawdownPct: maxDrawdownPct,
	}, nil
}

// NewZeroTracker builds a tracker with no observed equity. Used when the
// initial account fetch fails: the stream runs degraded (sizing yields
// nothing) and recovers as soon as a cycle sees real equity.
func NewZeroTracker(maxDrawdownPct float64) *DrawdownTracker {
	return &DrawdownTracker{maxDrawdownPct: maxDrawdownPct}
}

// Update records the latest equity, raising the peak if exceeded.
func (d *DrawdownTracker) Update(equity float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentEquity = equity
	if equity > d.peakEquity {
		d.peakEquity = equity
	}
}

// PeakEquity returns the highest equity recorded.
func (d *DrawdownTracker) PeakEquity() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.peakEquity
}

// CurrentEquity returns the most recently recorded equity.
func (d *DrawdownTracker) CurrentEquity() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentEquity
}

// DrawdownPct returns the current drawdown as a percentage of peak equity.
func (d *DrawdownTracker) DrawdownPct() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.drawdownPctLocked()
}

func (d *DrawdownTracker) drawdownPctLocked() float64 {
	if d.peakEquity == 0 {
		return 0
	}
	return (d.peakEquity - d.currentEquity) / d.peakEquity * 100
}

// CircuitBreakerActive reports whether drawdown has reached the threshold.
// The boundary counts: drawdown exactly at the threshold trips it.
func (d *DrawdownTracker) CircuitBreakerActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.drawdownPctLocked() >= d.maxDrawdownPct
}

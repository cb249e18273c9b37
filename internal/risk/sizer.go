package risk

import "fmt"

// CalculateUnits returns the position size in units:
//
//	riskAmount  = equity × (riskPct / 100)
//	slInPrice   = slDistancePips × pipValue
//	units       = riskAmount / slInPrice
//
// The result is always positive; the caller negates it for sell orders and
// floors it at 1 whole unit. Flooring a sub-unit result to 1 silently
// increases effective risk on tiny accounts — a known edge the engine logs.
func CalculateUnits(equity, riskPct, slDistancePips, pipValue float64) (float64, error) {
	if equity <= 0 {
		return 0, fmt.Errorf("equity must be positive, got %g", equity)
	}
	if riskPct <= 0 {
		return 0, fmt.Errorf("risk pct must be positive, got %g", riskPct)
	}
	if slDistancePips <= 0 {
		return 0, fmt.Errorf("stop distance must be positive, got %g", slDistancePips)
	}
	if pipValue <= 0 {
		return 0, fmt.Errorf("pip value must be positive, got %g", pipValue)
	}

	riskAmount := equity * (riskPct / 100)
	slInPrice := slDistancePips * pipValue
	return riskAmount / slInPrice, nil
}

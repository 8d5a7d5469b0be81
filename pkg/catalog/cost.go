package catalog

import (
	"fmt"
	"math"
)

// EffectiveCost resolves the integer credit cost of a request.
//
// Resolution order:
//  1. explicit amount, when given, replaces the feature's base cost
//  2. plan overrides replace the base cost for the caller's plan
//  3. cost modifiers adjust the result from request metadata:
//     categorical modifiers multiply, quantitative ones add per unit
//
// The result is never negative. Pure function: safe to call from tests
// and from concurrent request workers.
func EffectiveCost(f Feature, planID string, amount int, metadata map[string]any) int {
	cost := f.CostFor(planID)
	if amount > 0 {
		cost = amount
	}

	for key, mod := range f.CostModifiers {
		value, ok := metadata[key]
		if !ok {
			continue
		}

		if len(mod.Multipliers) > 0 {
			if mult, ok := mod.Multipliers[fmt.Sprint(value)]; ok {
				cost *= mult
				continue
			}
		}

		if mod.PerUnit != 0 {
			if units, ok := toUnits(value); ok {
				cost += units * mod.PerUnit
			}
		}
	}

	return max(cost, 0)
}

// FallbackCost is the cost applied to features absent from the catalog:
// the explicit amount, or a single credit. Modifiers are skipped since
// there is no definition to read them from.
func FallbackCost(amount int) int {
	if amount > 0 {
		return amount
	}
	return 1
}

// toUnits converts a metadata value to a whole unit count.
// Fractional values are rounded to the nearest unit.
func toUnits(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(math.Round(float64(n))), true
	case float64:
		return int(math.Round(n)), true
	default:
		return 0, false
	}
}

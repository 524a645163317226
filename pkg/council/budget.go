package council

import (
	"errors"
	"fmt"

	"github.com/zen-systems/quorum/pkg/catalog"
)

// ErrBudgetExceeded reports that no council, even downshifted to the
// minimum size over the cheapest paid models, fits the tier's cost cap.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Pre-flight estimation constants. assumedOutputTokens pads every model's
// reply for estimation only; actual accounting uses observed sizes.
const (
	assumedOutputTokens = 600
	minDownshiftSize    = 2
)

// CapFor returns the per-request cost cap in USD for a budget tier.
func CapFor(tier BudgetTier) float64 {
	switch tier {
	case BudgetFree:
		return 0
	case BudgetLow:
		return 0.01
	case BudgetMedium:
		return 0.05
	default:
		return 0.50
	}
}

// EstimateInputTokens approximates prompt tokens at four characters per
// token, never below one.
func EstimateInputTokens(prompt string) int {
	tokens := (len(prompt) + 3) / 4
	if tokens < 1 {
		return 1
	}
	return tokens
}

// EstimateModelCost returns the pre-flight cost estimate for one model.
func EstimateModelCost(m catalog.Model, prompt string) float64 {
	in := float64(EstimateInputTokens(prompt)) / 1e6 * m.InputPerMTok
	out := float64(assumedOutputTokens) / 1e6 * m.OutputPerMTok
	return in + out
}

// EstimateCost returns the pre-flight cost estimate for a whole council.
func EstimateCost(models []catalog.Model, prompt string) float64 {
	total := 0.0
	for _, m := range models {
		total += EstimateModelCost(m, prompt)
	}
	return total
}

// ApplyBudget enforces the tier's cost cap on a selected council. If the
// estimate exceeds the cap it rebuilds the council cheapest-first from
// paid models, shrinking from the selected size down to two, and accepts
// the first size that fits. It never returns a council over the cap.
func ApplyBudget(selected, all []catalog.Model, prompt string, tier BudgetTier) ([]catalog.Model, error) {
	capUSD := CapFor(tier)
	if EstimateCost(selected, prompt) <= capUSD {
		return selected, nil
	}

	pool := paidCheapestFirst(all)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no paid models to downshift to: %w", ErrBudgetExceeded)
	}

	maxSize := len(selected)
	if len(pool) < maxSize {
		maxSize = len(pool)
	}
	for size := maxSize; size >= minDownshiftSize; size-- {
		candidate := pool[:size]
		if EstimateCost(candidate, prompt) <= capUSD {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("cheapest council of %d still over %.4f USD cap: %w", minDownshiftSize, capUSD, ErrBudgetExceeded)
}

func paidCheapestFirst(models []catalog.Model) []catalog.Model {
	var paid []catalog.Model
	seen := make(map[string]bool)
	for _, m := range models {
		if m.Free || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		paid = append(paid, m)
	}
	catalog.SortByAvgPrice(paid)
	return paid
}

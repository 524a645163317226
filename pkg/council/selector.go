// Package council chooses which models answer a request: a diversified,
// budget-filtered draw across price buckets, followed by a cost guardrail
// that downshifts the council rather than rejecting outright.
package council

import (
	"math/rand/v2"

	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/classify"
)

// BudgetTier is the requester's cost ceiling class.
type BudgetTier string

const (
	BudgetFree   BudgetTier = "free"
	BudgetLow    BudgetTier = "low"
	BudgetMedium BudgetTier = "medium"
	BudgetHigh   BudgetTier = "high"
)

// Reliability selects between cost-balanced and premium-heavy councils
// for complex prompts.
type Reliability string

const (
	ReliabilityStandard Reliability = "standard"
	ReliabilityHigh     Reliability = "high"
)

// Average-price ceilings applied before bucketing, USD per million tokens.
const (
	lowTierCeiling    = 1.0
	mediumTierCeiling = 10.0
)

// MinSize returns the minimum viable council size for a tier.
func MinSize(tier classify.Tier) int {
	if tier == classify.Complex {
		return 4
	}
	return 3
}

// TargetVotes returns how many independent votes a race should aim for.
func TargetVotes(tier classify.Tier, councilSize int) int {
	target := 3
	if tier == classify.Complex {
		target = 4
	}
	if councilSize < target {
		return councilSize
	}
	return target
}

// Select draws a diversified council from the model pool. Draws are
// uniform without replacement within each bucket; the rng is injected so
// tests can pin the shuffle. Randomness here spreads load across
// comparable models, it is not a correctness requirement.
func Select(models []catalog.Model, tier classify.Tier, budget BudgetTier, rel Reliability, rng *rand.Rand) []catalog.Model {
	candidates := filterByBudget(models, budget)
	if len(candidates) == 0 {
		return nil
	}

	buckets := partition(candidates)
	drawn := drawForTier(buckets, tier, rel, rng)

	// Bucket exhaustion: fall back to the overall-cheapest candidates.
	if len(drawn) < 3 {
		cheapest := make([]catalog.Model, len(candidates))
		copy(cheapest, candidates)
		catalog.SortByAvgPrice(cheapest)
		if len(cheapest) > 3 {
			cheapest = cheapest[:3]
		}
		return cheapest
	}
	return drawn
}

func filterByBudget(models []catalog.Model, budget BudgetTier) []catalog.Model {
	var out []catalog.Model
	for _, m := range models {
		switch budget {
		case BudgetFree:
			if m.Free {
				out = append(out, m)
			}
		case BudgetLow:
			if m.Free || m.AvgPerMTok <= lowTierCeiling {
				out = append(out, m)
			}
		case BudgetMedium:
			if m.Free || m.AvgPerMTok <= mediumTierCeiling {
				out = append(out, m)
			}
		default: // high: no ceiling
			out = append(out, m)
		}
	}
	return out
}

type buckets struct {
	free    []catalog.Model
	cheap   []catalog.Model
	smart   []catalog.Model
	premium []catalog.Model
	simple  []catalog.Model
}

func partition(models []catalog.Model) buckets {
	var b buckets
	for _, m := range models {
		switch catalog.BucketOf(m) {
		case catalog.BucketFree:
			b.free = append(b.free, m)
		case catalog.BucketCheap:
			b.cheap = append(b.cheap, m)
		case catalog.BucketSmart:
			b.smart = append(b.smart, m)
		default:
			b.premium = append(b.premium, m)
		}
		if catalog.InSimpleBand(m) {
			b.simple = append(b.simple, m)
		}
	}
	return b
}

func drawForTier(b buckets, tier classify.Tier, rel Reliability, rng *rand.Rand) []catalog.Model {
	picker := newPicker(rng)
	switch tier {
	case classify.Simple:
		picker.draw(b.simple, 3)
	case classify.Medium:
		picker.draw(concat(b.cheap, b.free), 4)
		picker.draw(concat(b.smart, b.cheap), 1)
	default: // complex
		if rel == ReliabilityHigh {
			picker.draw(b.smart, 3)
			picker.draw(b.premium, 2)
		} else {
			picker.draw(b.cheap, 2)
			picker.draw(b.smart, 3)
		}
	}
	return picker.selected
}

// picker accumulates draws, skipping models already chosen so overlapping
// pools never produce duplicates.
type picker struct {
	rng      *rand.Rand
	selected []catalog.Model
	taken    map[string]bool
}

func newPicker(rng *rand.Rand) *picker {
	return &picker{rng: rng, taken: make(map[string]bool)}
}

func (p *picker) draw(pool []catalog.Model, n int) {
	avail := make([]catalog.Model, 0, len(pool))
	for _, m := range pool {
		if !p.taken[m.ID] {
			avail = append(avail, m)
		}
	}
	p.rng.Shuffle(len(avail), func(i, j int) {
		avail[i], avail[j] = avail[j], avail[i]
	})
	if n > len(avail) {
		n = len(avail)
	}
	for _, m := range avail[:n] {
		p.taken[m.ID] = true
		p.selected = append(p.selected, m)
	}
}

func concat(a, b []catalog.Model) []catalog.Model {
	out := make([]catalog.Model, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

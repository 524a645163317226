package council

import (
	"math/rand/v2"
	"testing"

	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/classify"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testPool() []catalog.Model {
	return []catalog.Model{
		{ID: "meta/free-a", Free: true},
		{ID: "meta/free-b", Free: true},
		{ID: "meta/free-c", Free: true},
		{ID: "openai/cheap-a", AvgPerMTok: 0.10, InputPerMTok: 0.08, OutputPerMTok: 0.12},
		{ID: "google/cheap-b", AvgPerMTok: 0.15, InputPerMTok: 0.10, OutputPerMTok: 0.20},
		{ID: "deepseek/cheap-c", AvgPerMTok: 0.60, InputPerMTok: 0.30, OutputPerMTok: 0.90},
		{ID: "openai/smart-a", AvgPerMTok: 4.0, InputPerMTok: 2.0, OutputPerMTok: 6.0},
		{ID: "anthropic/smart-b", AvgPerMTok: 9.0, InputPerMTok: 3.0, OutputPerMTok: 15.0},
		{ID: "openai/smart-c", AvgPerMTok: 6.0, InputPerMTok: 2.5, OutputPerMTok: 9.5},
		{ID: "anthropic/premium-a", AvgPerMTok: 45.0, InputPerMTok: 15.0, OutputPerMTok: 75.0},
		{ID: "openai/premium-b", AvgPerMTok: 37.5, InputPerMTok: 15.0, OutputPerMTok: 60.0},
	}
}

func TestSelectFreeTierKeepsOnlyFreeModels(t *testing.T) {
	selected := Select(testPool(), classify.Simple, BudgetFree, ReliabilityStandard, testRand())
	if len(selected) != 3 {
		t.Fatalf("expected 3 models, got %d", len(selected))
	}
	for _, m := range selected {
		if !m.Free {
			t.Fatalf("free tier selected a paid model: %s", m.ID)
		}
	}
}

func TestSelectSimpleDrawsFromCheapBand(t *testing.T) {
	selected := Select(testPool(), classify.Simple, BudgetHigh, ReliabilityStandard, testRand())
	if len(selected) != 3 {
		t.Fatalf("expected 3 models, got %d", len(selected))
	}
	for _, m := range selected {
		if !catalog.InSimpleBand(m) {
			t.Fatalf("simple tier drew outside the cheap band: %s ($%v/M)", m.ID, m.AvgPerMTok)
		}
	}
}

func TestSelectMediumDrawsFiveWithoutDuplicates(t *testing.T) {
	selected := Select(testPool(), classify.Medium, BudgetHigh, ReliabilityStandard, testRand())
	if len(selected) != 5 {
		t.Fatalf("expected 5 models, got %d", len(selected))
	}
	seen := make(map[string]bool)
	for _, m := range selected {
		if seen[m.ID] {
			t.Fatalf("duplicate model in council: %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestSelectComplexHighReliabilityUsesPremium(t *testing.T) {
	selected := Select(testPool(), classify.Complex, BudgetHigh, ReliabilityHigh, testRand())
	if len(selected) != 5 {
		t.Fatalf("expected 5 models, got %d", len(selected))
	}
	premium := 0
	for _, m := range selected {
		if catalog.BucketOf(m) == catalog.BucketPremium {
			premium++
		}
	}
	if premium != 2 {
		t.Fatalf("expected 2 premium models, got %d", premium)
	}
}

func TestSelectDeterministicWithFixedSeed(t *testing.T) {
	first := Select(testPool(), classify.Medium, BudgetHigh, ReliabilityStandard, testRand())
	second := Select(testPool(), classify.Medium, BudgetHigh, ReliabilityStandard, testRand())
	if len(first) != len(second) {
		t.Fatalf("seeded selection should be reproducible")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("seeded selection diverged at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSelectBucketExhaustionFallsBackToCheapest(t *testing.T) {
	pool := []catalog.Model{
		{ID: "a/premium-1", AvgPerMTok: 40, InputPerMTok: 20, OutputPerMTok: 60},
		{ID: "b/premium-2", AvgPerMTok: 50, InputPerMTok: 25, OutputPerMTok: 75},
		{ID: "c/premium-3", AvgPerMTok: 60, InputPerMTok: 30, OutputPerMTok: 90},
		{ID: "d/premium-4", AvgPerMTok: 70, InputPerMTok: 35, OutputPerMTok: 105},
	}

	// Simple tier draw finds nothing in the cheap band.
	selected := Select(pool, classify.Simple, BudgetHigh, ReliabilityStandard, testRand())
	if len(selected) != 3 {
		t.Fatalf("expected cheapest-3 fallback, got %d models", len(selected))
	}
	if selected[0].ID != "a/premium-1" || selected[1].ID != "b/premium-2" {
		t.Fatalf("fallback should be cheapest-first: %v", selected)
	}
}

func TestSelectEmptyPool(t *testing.T) {
	if got := Select(nil, classify.Simple, BudgetFree, ReliabilityStandard, testRand()); got != nil {
		t.Fatalf("expected nil council for empty pool, got %v", got)
	}
}

package council

import (
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/quorum/pkg/catalog"
)

func TestEstimateInputTokens(t *testing.T) {
	cases := []struct {
		prompt string
		want   int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateInputTokens(tc.prompt); got != tc.want {
			t.Fatalf("EstimateInputTokens(%d chars) = %d, want %d", len(tc.prompt), got, tc.want)
		}
	}
}

func TestApplyBudgetKeepsCouncilUnderCap(t *testing.T) {
	selected := []catalog.Model{
		{ID: "a/cheap", InputPerMTok: 0.1, OutputPerMTok: 0.2, AvgPerMTok: 0.15},
		{ID: "b/cheap", InputPerMTok: 0.1, OutputPerMTok: 0.2, AvgPerMTok: 0.15},
		{ID: "c/cheap", InputPerMTok: 0.1, OutputPerMTok: 0.2, AvgPerMTok: 0.15},
	}
	got, err := ApplyBudget(selected, selected, "hello", BudgetLow)
	if err != nil {
		t.Fatalf("ApplyBudget: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("cheap council should pass untouched, got %d models", len(got))
	}
}

// A council estimated at roughly $0.02 against the low tier's $0.01 cap
// must downshift to cheaper models rather than run over budget.
func TestApplyBudgetDownshiftsExpensiveCouncil(t *testing.T) {
	// ~600 output tokens at $10/M output is $0.006 per model; three of
	// these estimate to ~$0.02, over the $0.01 low cap.
	selected := []catalog.Model{
		{ID: "a/mid", InputPerMTok: 5, OutputPerMTok: 10, AvgPerMTok: 7.5},
		{ID: "b/mid", InputPerMTok: 5, OutputPerMTok: 10, AvgPerMTok: 7.5},
		{ID: "c/mid", InputPerMTok: 5, OutputPerMTok: 10, AvgPerMTok: 7.5},
	}
	all := append([]catalog.Model{
		{ID: "d/cheap", InputPerMTok: 0.2, OutputPerMTok: 0.4, AvgPerMTok: 0.3},
		{ID: "e/cheap", InputPerMTok: 0.3, OutputPerMTok: 0.6, AvgPerMTok: 0.45},
		{ID: "f/cheap", InputPerMTok: 0.5, OutputPerMTok: 1.0, AvgPerMTok: 0.75},
	}, selected...)

	got, err := ApplyBudget(selected, all, "short prompt", BudgetLow)
	if err != nil {
		t.Fatalf("ApplyBudget: %v", err)
	}
	if len(got) < minDownshiftSize {
		t.Fatalf("downshifted council too small: %d", len(got))
	}
	if cost := EstimateCost(got, "short prompt"); cost > CapFor(BudgetLow) {
		t.Fatalf("downshifted council still over cap: $%.5f", cost)
	}
	if got[0].ID != "d/cheap" {
		t.Fatalf("downshift should rebuild cheapest-first, got %s", got[0].ID)
	}
}

func TestApplyBudgetExceededWhenNothingFits(t *testing.T) {
	selected := []catalog.Model{
		{ID: "a/premium", InputPerMTok: 15, OutputPerMTok: 75, AvgPerMTok: 45},
		{ID: "b/premium", InputPerMTok: 15, OutputPerMTok: 60, AvgPerMTok: 37.5},
		{ID: "c/premium", InputPerMTok: 20, OutputPerMTok: 80, AvgPerMTok: 50},
	}
	_, err := ApplyBudget(selected, selected, "hello", BudgetLow)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestApplyBudgetNoPaidPool(t *testing.T) {
	selected := []catalog.Model{
		{ID: "a/premium", InputPerMTok: 15, OutputPerMTok: 75, AvgPerMTok: 45},
	}
	all := []catalog.Model{{ID: "x/free", Free: true}}
	_, err := ApplyBudget(selected, all, "hello", BudgetLow)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded with no paid pool, got %v", err)
	}
}

// Raising the budget tier must never shrink the accepted council.
func TestApplyBudgetMonotonicAcrossTiers(t *testing.T) {
	selected := []catalog.Model{
		{ID: "a/mid", InputPerMTok: 2, OutputPerMTok: 8, AvgPerMTok: 5},
		{ID: "b/mid", InputPerMTok: 2, OutputPerMTok: 8, AvgPerMTok: 5},
		{ID: "c/mid", InputPerMTok: 2, OutputPerMTok: 8, AvgPerMTok: 5},
		{ID: "d/mid", InputPerMTok: 2, OutputPerMTok: 8, AvgPerMTok: 5},
		{ID: "e/mid", InputPerMTok: 2, OutputPerMTok: 8, AvgPerMTok: 5},
	}
	prompt := strings.Repeat("q", 2000)

	sizeFor := func(tier BudgetTier) int {
		got, err := ApplyBudget(selected, selected, prompt, tier)
		if err != nil {
			return 0
		}
		return len(got)
	}
	low, medium, high := sizeFor(BudgetLow), sizeFor(BudgetMedium), sizeFor(BudgetHigh)
	if medium < low || high < medium {
		t.Fatalf("council size not monotonic across tiers: low=%d medium=%d high=%d", low, medium, high)
	}
}

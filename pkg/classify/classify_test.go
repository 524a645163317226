package classify

import "testing"

func TestPromptTiers(t *testing.T) {
	cases := []struct {
		prompt string
		want   Tier
	}{
		{"What is the capital of France?", Simple},
		{"Explain the difference between TCP and UDP and why each exists", Medium},
		{"Prove the algorithm is correct, analyze its concurrency behavior step by step, and derive its complexity", Complex},
	}
	for _, tc := range cases {
		got := Prompt(tc.prompt)
		if got.Tier != tc.want {
			t.Fatalf("Prompt(%q).Tier = %v (score %v), want %v", tc.prompt, got.Tier, got.Score, tc.want)
		}
	}
}

func TestPromptIsDeterministic(t *testing.T) {
	prompt := "Compare the two designs and explain the trade-offs"
	first := Prompt(prompt)
	for i := 0; i < 5; i++ {
		if Prompt(prompt) != first {
			t.Fatalf("classifier must be pure")
		}
	}
}

func TestPromptScoreBounded(t *testing.T) {
	long := ""
	for i := 0; i < 400; i++ {
		long += "analyze implement optimize prove derive "
	}
	d := Prompt(long)
	if d.Score < 0 || d.Score > 1 {
		t.Fatalf("score out of range: %v", d.Score)
	}
	if d.Tier != Complex {
		t.Fatalf("heavily triggered prompt should be complex")
	}
}

// Package classify scores prompt complexity. The engine treats the tier
// as an opaque routing key supplied by the caller; this scorer exists so
// the CLI and HTTP surfaces are self-contained.
package classify

import "strings"

// Tier is a complexity class used to size and price the council.
type Tier string

const (
	Simple  Tier = "simple"
	Medium  Tier = "medium"
	Complex Tier = "complex"
)

// Decision is the classifier output: the chosen tier and the raw score
// behind it.
type Decision struct {
	Tier  Tier
	Score float64
}

// Trigger phrases that signal heavier reasoning. Matches are counted, not
// weighted; the tier boundaries absorb the noise.
var complexTriggers = []string{
	"prove", "derive", "architect", "system design", "step by step",
	"analyze", "trade-off", "tradeoff", "implement", "refactor",
	"algorithm", "optimize", "concurrency", "deadlock", "formal",
}

var mediumTriggers = []string{
	"explain", "compare", "summarize", "why", "how does", "difference",
	"pros and cons", "walk me through", "describe",
}

// Prompt scores a prompt and maps it onto a tier. Pure and stateless:
// identical text always yields the identical decision.
func Prompt(text string) Decision {
	lowered := strings.ToLower(text)
	words := len(strings.Fields(lowered))

	score := 0.0
	switch {
	case words > 150:
		score += 0.45
	case words > 60:
		score += 0.3
	case words > 25:
		score += 0.15
	}

	for _, trigger := range complexTriggers {
		if strings.Contains(lowered, trigger) {
			score += 0.2
		}
	}
	for _, trigger := range mediumTriggers {
		if strings.Contains(lowered, trigger) {
			score += 0.1
		}
	}
	if strings.Contains(text, "```") {
		score += 0.2
	}
	if strings.Count(text, "?") > 1 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	tier := Simple
	switch {
	case score >= 0.6:
		tier = Complex
	case score >= 0.25:
		tier = Medium
	}
	return Decision{Tier: tier, Score: score}
}

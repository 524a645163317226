// Package consensus clusters model answers into agreement groups. Grouping
// is a single greedy pass in arrival order: each vote is compared against
// the first member of every existing group and joins the first one whose
// similarity clears the active threshold. Groups never merge afterwards,
// so arrival order can shift which answer becomes a group's
// representative; the similarity threshold bounds how far that drifts.
package consensus

import (
	"context"
	"sort"
)

// Vote is one model's answer within a race.
type Vote struct {
	Model  string `json:"model"`
	Answer string `json:"answer"`
	Agrees bool   `json:"agrees"`
}

// Group is one cluster of substantively agreeing answers.
type Group struct {
	Representative string
	Members        []string
	Count          int
	MaxSimilarity  float64
}

// Similarity scores how close two answers are, in [0, 1], and carries the
// join threshold for its mode. Implementations must be deterministic for a
// fixed vote list.
type Similarity interface {
	Score(ctx context.Context, a, b string) float64
	Threshold() float64
}

// Group clusters votes in arrival order. Empty input yields an empty
// slice; callers must treat that as total failure rather than reading a
// winning group. The result is ordered by descending count, ties keeping
// creation order.
func GroupVotes(ctx context.Context, votes []Vote, sim Similarity) []Group {
	var groups []Group

	for _, vote := range votes {
		joined := false
		for i := range groups {
			score := sim.Score(ctx, vote.Answer, groups[i].Representative)
			if score > sim.Threshold() {
				groups[i].Members = append(groups[i].Members, vote.Model)
				groups[i].Count++
				if score > groups[i].MaxSimilarity {
					groups[i].MaxSimilarity = score
				}
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, Group{
				Representative: vote.Answer,
				Members:        []string{vote.Model},
				Count:          1,
			})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}

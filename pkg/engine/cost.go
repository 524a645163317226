package engine

import (
	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/consensus"
	"github.com/zen-systems/quorum/pkg/council"
	"github.com/zen-systems/quorum/pkg/trace"
)

// Per-call cost constants. Embedding calls are flat-priced at roughly one
// kilotoken of a small embedding model; escalation is charged a fixed
// synthesis fee rather than metered output.
const (
	embeddingCallUSD = 0.00002
	escalationFeeUSD = 0.002
	charsPerToken    = 4
)

// accountCosts sums actual per-vote spend using each voting model's own
// prices, plus embedding and escalation charges when incurred. Models that
// failed or returned nothing cost the input side only in practice, but the
// source of truth for billing is upstream; this is the local estimate.
func accountCosts(votes []consensus.Vote, raced []catalog.Model, prompt string, embedCalls int, escalated bool) trace.Cost {
	prices := make(map[string]catalog.Model, len(raced))
	for _, m := range raced {
		prices[m.ID] = m
	}

	inTokens := float64(council.EstimateInputTokens(prompt))
	var cost trace.Cost
	for _, v := range votes {
		m, ok := prices[v.Model]
		if !ok {
			continue
		}
		outTokens := float64(len(v.Answer)+charsPerToken-1) / charsPerToken
		cost.Models += inTokens/1e6*m.InputPerMTok + outTokens/1e6*m.OutputPerMTok
	}
	cost.Embedding = float64(embedCalls) * embeddingCallUSD
	if escalated {
		cost.Escalation = escalationFeeUSD
	}
	cost.Total = cost.Models + cost.Embedding + cost.Escalation
	return cost
}

package engine

import (
	"errors"

	"github.com/zen-systems/quorum/pkg/council"
)

// Surfaced failure classes. Registry outages and embedding failures are
// recovered internally and never reach these.
var (
	// ErrNoModels: budget and tier filters left nothing to race.
	ErrNoModels = errors.New("no models available")

	// ErrAllModelsFailed: the race finished with zero usable votes.
	ErrAllModelsFailed = errors.New("all models failed")

	// ErrBudgetExceeded aliases the guardrail's sentinel so callers can
	// branch on engine errors alone.
	ErrBudgetExceeded = council.ErrBudgetExceeded
)

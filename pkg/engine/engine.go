// Package engine composes the consensus pipeline: cache lookup, catalog
// fetch, council selection, budget guardrail, racing, agreement clustering,
// optional escalation synthesis, cost accounting, and result caching. It is
// the only entry point the request-handling layer calls.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/zen-systems/quorum/pkg/cache"
	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/classify"
	"github.com/zen-systems/quorum/pkg/consensus"
	"github.com/zen-systems/quorum/pkg/council"
	"github.com/zen-systems/quorum/pkg/provider"
	"github.com/zen-systems/quorum/pkg/race"
	"github.com/zen-systems/quorum/pkg/trace"
)

const (
	resultKeyPrefix = "consensus:"

	// ResultTTL is how long a high-confidence result stays cached.
	ResultTTL = 24 * time.Hour

	// cacheConfidenceFloor: results at or below this are never cached, so
	// a low-confidence answer cannot get pinned for a day.
	cacheConfidenceFloor = 0.8

	// escalationConfidenceCeil: below this, a non-simple paid request is
	// handed to the synthesis model for reconciliation.
	escalationConfidenceCeil = 0.6

	maxBackups = 3
)

// Request is one consensus question. Zero-valued tiers default to low
// budget and standard reliability.
type Request struct {
	Prompt      string              `json:"prompt"`
	BudgetTier  council.BudgetTier  `json:"budget_tier,omitempty"`
	Reliability council.Reliability `json:"reliability,omitempty"`
}

func (r Request) withDefaults() Request {
	if r.BudgetTier == "" {
		r.BudgetTier = council.BudgetLow
	}
	if r.Reliability == "" {
		r.Reliability = council.ReliabilityStandard
	}
	return r
}

// Result is the externally visible outcome of one consensus run.
type Result struct {
	RequestID   string           `json:"request_id"`
	Answer      string           `json:"answer"`
	Confidence  float64          `json:"confidence"`
	Votes       []consensus.Vote `json:"votes"`
	ModelUsed   string           `json:"model_used"`
	Synthesized bool             `json:"synthesized"`
	Cached      bool             `json:"cached"`
	Cost        trace.Cost       `json:"cost"`
	Trace       *trace.Record    `json:"trace,omitempty"`
}

// Config wires an Engine's collaborators.
type Config struct {
	Registry *catalog.Registry
	// Completer issues chat completions for both the race and escalation.
	Completer race.Completer
	// Embedder powers semantic clustering for paid tiers; nil forces the
	// deterministic trigram fallback.
	Embedder       provider.Embedder
	EmbeddingModel string
	// SynthesisModel reconciles disagreeing councils. Empty disables
	// escalation.
	SynthesisModel string
	Store          cache.Store
	Timings        race.Timings
	// Fallback models merged under the live catalog; nil means the
	// curated default set.
	Fallback []catalog.Model
	// Rand seeds council draws; nil uses an unseeded source.
	Rand   *rand.Rand
	Logger *slog.Logger
	// TraceWriter persists per-request execution records when set.
	TraceWriter *trace.Writer
}

// Engine runs the consensus pipeline. Safe for concurrent use.
type Engine struct {
	registry       *catalog.Registry
	completer      race.Completer
	embedder       provider.Embedder
	embeddingModel string
	synthesisModel string
	store          cache.Store
	fallback       []catalog.Model
	racer          *race.Racer
	logger         *slog.Logger
	traceWriter    *trace.Writer

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Engine from its collaborators.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = catalog.Fallback()
	}
	return &Engine{
		registry:       cfg.Registry,
		completer:      cfg.Completer,
		embedder:       cfg.Embedder,
		embeddingModel: cfg.EmbeddingModel,
		synthesisModel: cfg.SynthesisModel,
		store:          cfg.Store,
		fallback:       fallback,
		racer:          race.New(cfg.Completer, cfg.Timings, logger),
		logger:         logger,
		traceWriter:    cfg.TraceWriter,
		rng:            rng,
	}
}

// RunConsensus answers a request by racing a council and clustering the
// votes. It fails with ErrNoModels when filters leave nothing to race,
// council.ErrBudgetExceeded when policy is unsatisfiable, and
// ErrAllModelsFailed when the race collects zero votes.
func (e *Engine) RunConsensus(ctx context.Context, req Request, tier classify.Tier) (Result, error) {
	req = req.withDefaults()
	requestID := trace.NewID()
	log := e.logger.With("request_id", requestID, "tier", tier, "budget", req.BudgetTier)

	key := resultKey(req.Prompt, req.BudgetTier, tier)
	if cached, ok := e.lookupResult(ctx, key); ok {
		log.Info("cache hit")
		cached.Cached = true
		return cached, nil
	}

	models := e.loadModels(ctx, log)
	selected := e.selectCouncil(models, tier, req)
	if len(selected) == 0 {
		return Result{}, fmt.Errorf("tier %s, budget %s: %w", tier, req.BudgetTier, ErrNoModels)
	}

	guarded, err := council.ApplyBudget(selected, models, req.Prompt, req.BudgetTier)
	if err != nil {
		return Result{}, err
	}

	backups := backupPool(models, guarded, req.BudgetTier)
	target := council.TargetVotes(tier, len(guarded))
	log.Info("racing council", "size", len(guarded), "backups", len(backups), "target", target)

	report := e.racer.Run(ctx, req.Prompt, guarded, backups, target)
	if len(report.Votes) == 0 {
		return Result{}, fmt.Errorf("%d calls, zero votes: %w", len(report.Outcomes), ErrAllModelsFailed)
	}

	sim, simMode := e.similarityFor(req.BudgetTier)
	groups := consensus.GroupVotes(ctx, report.Votes, sim)

	result := Result{RequestID: requestID, Votes: report.Votes}
	if len(groups) == 0 {
		// Defensive: GroupVotes only returns empty for empty input.
		result.Answer = report.Votes[0].Answer
		result.ModelUsed = report.Votes[0].Model
		result.Confidence = 1 / float64(len(report.Votes))
	} else {
		top := groups[0]
		result.Answer = top.Representative
		result.ModelUsed = top.Members[0]
		result.Confidence = float64(top.Count) / float64(len(report.Votes))
		annotateAgreement(result.Votes, top)
	}

	escalated := e.maybeEscalate(ctx, &result, req, tier, log)

	raced := append(append([]catalog.Model{}, guarded...), backups...)
	embedCalls := 0
	if sem, ok := sim.(*consensus.Semantic); ok {
		embedCalls = sem.EmbedCalls()
	}
	result.Cost = accountCosts(result.Votes, raced, req.Prompt, embedCalls, escalated)
	result.Trace = buildTrace(req, tier, simMode, guarded, backups, report, result)

	e.storeResult(ctx, key, result)
	e.writeTrace(result)
	log.Info("consensus resolved",
		"confidence", result.Confidence,
		"votes", len(result.Votes),
		"resolution", report.Resolution,
		"synthesized", result.Synthesized,
		"cost_usd", result.Cost.Total)
	return result, nil
}

// loadModels merges the live catalog with the curated fallback set, live
// entries winning on ID collision. A catalog outage degrades to the
// fallback set alone rather than failing the request.
func (e *Engine) loadModels(ctx context.Context, log *slog.Logger) []catalog.Model {
	live, err := e.registry.Models(ctx)
	if err != nil {
		log.Warn("catalog unavailable, using fallback models", "error", err)
	}
	return catalog.Merge(live, e.fallback)
}

func (e *Engine) selectCouncil(models []catalog.Model, tier classify.Tier, req Request) []catalog.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return council.Select(models, tier, req.BudgetTier, req.Reliability, e.rng)
}

// similarityFor picks the clustering mode: free requests use lexical
// overlap, paid requests use embeddings with a request-scoped cache.
func (e *Engine) similarityFor(budget council.BudgetTier) (consensus.Similarity, string) {
	if budget == council.BudgetFree || e.embedder == nil {
		return consensus.Lexical{}, "lexical"
	}
	return consensus.NewSemantic(e.embedder, e.embeddingModel), "semantic"
}

// maybeEscalate hands a low-confidence, non-simple, paid request to the
// synthesis model. A synthesis failure keeps the top-group answer; the
// request never fails on escalation.
func (e *Engine) maybeEscalate(ctx context.Context, result *Result, req Request, tier classify.Tier, log *slog.Logger) bool {
	if result.Confidence >= escalationConfidenceCeil ||
		tier == classify.Simple ||
		req.BudgetTier == council.BudgetFree ||
		e.synthesisModel == "" {
		return false
	}

	answer, err := e.completer.Complete(ctx, e.synthesisModel, synthesisPrompt(req.Prompt, result.Votes))
	if err != nil || strings.TrimSpace(answer) == "" {
		log.Warn("escalation synthesis failed, keeping top answer", "model", e.synthesisModel, "error", err)
		return false
	}
	result.Answer = answer
	result.ModelUsed = e.synthesisModel
	result.Synthesized = true
	return true
}

func synthesisPrompt(prompt string, votes []consensus.Vote) string {
	var b strings.Builder
	b.WriteString("Several models answered the same question and disagree. ")
	b.WriteString("Reconcile their answers into a single best answer. Reply with the answer only.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\nAnswers:\n", prompt)
	for _, v := range votes {
		fmt.Fprintf(&b, "- [%s] %s\n", v.Model, v.Answer)
	}
	return b.String()
}

// backupPool returns the cheapest models outside the council, honoring the
// free-only restriction for free-tier requests.
func backupPool(models, selected []catalog.Model, budget council.BudgetTier) []catalog.Model {
	inCouncil := make(map[string]bool, len(selected))
	for _, m := range selected {
		inCouncil[m.ID] = true
	}

	var pool []catalog.Model
	for _, m := range models {
		if inCouncil[m.ID] {
			continue
		}
		if budget == council.BudgetFree && !m.Free {
			continue
		}
		pool = append(pool, m)
	}
	catalog.SortByAvgPrice(pool)
	if len(pool) > maxBackups {
		pool = pool[:maxBackups]
	}
	return pool
}

func annotateAgreement(votes []consensus.Vote, top consensus.Group) {
	members := make(map[string]bool, len(top.Members))
	for _, m := range top.Members {
		members[m] = true
	}
	for i := range votes {
		votes[i].Agrees = members[votes[i].Model]
	}
}

func (e *Engine) lookupResult(ctx context.Context, key string) (Result, bool) {
	data, ok, err := e.store.Get(ctx, key)
	if err != nil || !ok {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		e.logger.Warn("discarding undecodable cached result", "key", key)
		return Result{}, false
	}
	return result, true
}

func (e *Engine) storeResult(ctx context.Context, key string, result Result) {
	if result.Confidence <= cacheConfidenceFloor || result.Synthesized {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.store.Set(ctx, key, data, ResultTTL); err != nil {
		e.logger.Warn("result cache write failed", "error", err)
	}
}

func buildTrace(req Request, tier classify.Tier, simMode string, guarded, backups []catalog.Model, report race.Report, result Result) *trace.Record {
	return &trace.Record{
		RequestID:  result.RequestID,
		Timestamp:  time.Now().UTC(),
		Tier:       string(tier),
		BudgetTier: string(req.BudgetTier),
		Similarity: simMode,
		Council:    modelIDs(guarded),
		Backups:    modelIDs(backups),
		Outcomes:   report.Outcomes,
		Resolution: string(report.Resolution),
		Wave2Fired: report.Wave2Fired,
		Elapsed:    report.Elapsed.Milliseconds(),
		Confidence: result.Confidence,
		Escalated:  result.Synthesized,
		Cost:       result.Cost,
	}
}

func (e *Engine) writeTrace(result Result) {
	if e.traceWriter == nil || result.Trace == nil {
		return
	}
	if err := e.traceWriter.Write(*result.Trace); err != nil {
		e.logger.Warn("trace write failed", "request_id", result.RequestID, "error", err)
	}
}

func modelIDs(models []catalog.Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.ID
	}
	return out
}

// resultKey hashes the normalized prompt with the budget and complexity
// tiers. Normalization collapses whitespace and case so trivially
// restated prompts share a cache entry.
func resultKey(prompt string, budget council.BudgetTier, tier classify.Tier) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
	sum := sha256.Sum256([]byte(normalized + "|" + string(budget) + "|" + string(tier)))
	return resultKeyPrefix + hex.EncodeToString(sum[:])
}

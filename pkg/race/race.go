// Package race fires a council's inference calls concurrently, in up to
// two waves, under a hard deadline, and resolves as soon as enough
// independent votes have arrived or no more progress is possible. A race
// never fails: it returns whatever votes it collected, even none.
package race

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zen-systems/quorum/pkg/catalog"
	"github.com/zen-systems/quorum/pkg/consensus"
)

// Completer issues one chat completion. *provider.Registry satisfies it.
type Completer interface {
	Complete(ctx context.Context, modelID string, prompt string) (string, error)
}

// Timings control the race state machine. The zero value means defaults.
type Timings struct {
	// MinWait forbids resolution before this point so slower in-flight
	// models still get a chance to contribute.
	MinWait time.Duration
	// SecondWave is when backups launch if the vote target is unmet.
	SecondWave time.Duration
	// Deadline is the absolute ceiling; the race resolves at this point
	// with whatever it has.
	Deadline time.Duration
}

// DefaultTimings returns the production schedule.
func DefaultTimings() Timings {
	return Timings{
		MinWait:    3 * time.Second,
		SecondWave: 8 * time.Second,
		Deadline:   25 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.MinWait <= 0 {
		t.MinWait = d.MinWait
	}
	if t.SecondWave <= 0 {
		t.SecondWave = d.SecondWave
	}
	if t.Deadline <= 0 {
		t.Deadline = d.Deadline
	}
	return t
}

// Resolution says why a race ended.
type Resolution string

const (
	// ResolvedQuorum: the vote target was met after the minimum wait.
	ResolvedQuorum Resolution = "quorum"
	// ResolvedExhausted: every launched call finished below target.
	ResolvedExhausted Resolution = "exhausted"
	// ResolvedTimeout: the hard deadline fired.
	ResolvedTimeout Resolution = "timeout"
)

// Outcome records one model call for the execution trace, vote or not.
type Outcome struct {
	Model   string        `json:"model"`
	Wave    int           `json:"wave"`
	Latency time.Duration `json:"latency"`
	Voted   bool          `json:"voted"`
	Error   string        `json:"error,omitempty"`
}

// Report is the full result of one race.
type Report struct {
	Votes      []consensus.Vote
	Outcomes   []Outcome
	Resolution Resolution
	Wave2Fired bool
	Elapsed    time.Duration
}

// Racer runs races against a completion backend with bounded outbound
// concurrency shared across requests.
type Racer struct {
	completer Completer
	sem       *semaphore.Weighted
	timings   Timings
	logger    *slog.Logger
}

// MaxOutbound bounds concurrent provider calls across all races.
const MaxOutbound = 32

// New creates a Racer. A nil logger discards nothing; it falls back to
// slog.Default.
func New(completer Completer, timings Timings, logger *slog.Logger) *Racer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Racer{
		completer: completer,
		sem:       semaphore.NewWeighted(MaxOutbound),
		timings:   timings.withDefaults(),
		logger:    logger,
	}
}

type callResult struct {
	model   string
	wave    int
	answer  string
	err     error
	latency time.Duration
}

// Run races the council, launching backups at the second-wave mark when
// the target is unmet. Each model contributes at most one vote; empty or
// whitespace-only answers count as failures. On resolution every
// still-in-flight call is cancelled and its eventual result discarded.
func (r *Racer) Run(ctx context.Context, prompt string, council, backups []catalog.Model, target int) Report {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to total capacity so abandoned goroutines never block.
	results := make(chan callResult, len(council)+len(backups))
	inFlight := r.launch(ctx, results, prompt, council, 1)

	var report Report
	minWaitDone := false
	exhausted := false

	if inFlight == 0 {
		if len(backups) > 0 {
			report.Wave2Fired = true
			inFlight = r.launch(ctx, results, prompt, backups, 2)
		} else {
			exhausted = true
		}
	}

	minWait := time.NewTimer(r.timings.MinWait)
	defer minWait.Stop()
	secondWave := time.NewTimer(r.timings.SecondWave)
	defer secondWave.Stop()
	deadline := time.NewTimer(r.timings.Deadline)
	defer deadline.Stop()

	resolveIfReady := func() bool {
		if !minWaitDone {
			return false
		}
		if len(report.Votes) >= target {
			report.Resolution = ResolvedQuorum
			return true
		}
		if exhausted {
			report.Resolution = ResolvedExhausted
			return true
		}
		return false
	}

	for {
		select {
		case res := <-results:
			inFlight--
			report.Outcomes = append(report.Outcomes, r.record(res))
			if res.err == nil && strings.TrimSpace(res.answer) != "" {
				report.Votes = append(report.Votes, consensus.Vote{Model: res.model, Answer: res.answer})
			}
			if inFlight == 0 {
				// Wave 1 drained below target: pull wave 2 forward
				// instead of idling until its timer.
				if !report.Wave2Fired && len(report.Votes) < target && len(backups) > 0 {
					report.Wave2Fired = true
					inFlight += r.launch(ctx, results, prompt, backups, 2)
				} else {
					exhausted = true
				}
			}
			if resolveIfReady() {
				report.Elapsed = time.Since(start)
				return report
			}

		case <-minWait.C:
			minWaitDone = true
			if resolveIfReady() {
				report.Elapsed = time.Since(start)
				return report
			}

		case <-secondWave.C:
			if !report.Wave2Fired {
				report.Wave2Fired = true
				if len(report.Votes) < target && len(backups) > 0 {
					inFlight += r.launch(ctx, results, prompt, backups, 2)
				}
			}

		case <-deadline.C:
			report.Resolution = ResolvedTimeout
			report.Elapsed = time.Since(start)
			return report

		case <-ctx.Done():
			report.Resolution = ResolvedTimeout
			report.Elapsed = time.Since(start)
			return report
		}
	}
}

func (r *Racer) launch(ctx context.Context, results chan<- callResult, prompt string, models []catalog.Model, wave int) int {
	for _, m := range models {
		go func(id string) {
			began := time.Now()
			if err := r.sem.Acquire(ctx, 1); err != nil {
				results <- callResult{model: id, wave: wave, err: err, latency: time.Since(began)}
				return
			}
			defer r.sem.Release(1)
			answer, err := r.completer.Complete(ctx, id, prompt)
			results <- callResult{model: id, wave: wave, answer: answer, err: err, latency: time.Since(began)}
		}(m.ID)
	}
	return len(models)
}

func (r *Racer) record(res callResult) Outcome {
	out := Outcome{Model: res.model, Wave: res.wave, Latency: res.latency}
	switch {
	case res.err != nil:
		out.Error = res.err.Error()
		r.logger.Debug("model call failed", "model", res.model, "wave", res.wave, "error", res.err)
	case strings.TrimSpace(res.answer) == "":
		out.Error = "empty response"
		r.logger.Debug("model returned empty response", "model", res.model, "wave", res.wave)
	default:
		out.Voted = true
	}
	return out
}

package race

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zen-systems/quorum/pkg/catalog"
)

func testTimings() Timings {
	return Timings{
		MinWait:    30 * time.Millisecond,
		SecondWave: 80 * time.Millisecond,
		Deadline:   400 * time.Millisecond,
	}
}

type stubCompleter struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	calls   []string
}

func (s *stubCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, model)
	answer := s.answers[model]
	err := s.errs[model]
	delay := s.delays[model]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (s *stubCompleter) called(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == model {
			return true
		}
	}
	return false
}

func models(ids ...string) []catalog.Model {
	out := make([]catalog.Model, len(ids))
	for i, id := range ids {
		out[i] = catalog.Model{ID: id}
	}
	return out
}

func TestRunResolvesByQuorumAfterMinWait(t *testing.T) {
	stub := &stubCompleter{answers: map[string]string{
		"a/1": "Paris", "a/2": "Paris", "a/3": "Lyon",
	}}
	racer := New(stub, testTimings(), nil)

	start := time.Now()
	report := racer.Run(context.Background(), "capital of France?", models("a/1", "a/2", "a/3"), nil, 3)

	if report.Resolution != ResolvedQuorum {
		t.Fatalf("resolution = %v, want quorum", report.Resolution)
	}
	if len(report.Votes) != 3 {
		t.Fatalf("expected 3 votes, got %d", len(report.Votes))
	}
	if elapsed := time.Since(start); elapsed < testTimings().MinWait {
		t.Fatalf("resolved before the minimum wait: %v", elapsed)
	}
	if report.Wave2Fired {
		t.Fatalf("wave 2 should not fire when wave 1 meets target")
	}
}

// Council of five where only two answer before the deadline: the race
// resolves by timeout carrying the two votes it has.
func TestRunResolvesByTimeoutWithPartialVotes(t *testing.T) {
	hang := time.Second
	stub := &stubCompleter{
		answers: map[string]string{"a/1": "42", "a/2": "42"},
		delays: map[string]time.Duration{
			"a/3": hang, "a/4": hang, "a/5": hang,
		},
	}
	racer := New(stub, testTimings(), nil)

	report := racer.Run(context.Background(), "q", models("a/1", "a/2", "a/3", "a/4", "a/5"), nil, 3)

	if report.Resolution != ResolvedTimeout {
		t.Fatalf("resolution = %v, want timeout", report.Resolution)
	}
	if len(report.Votes) != 2 {
		t.Fatalf("expected 2 partial votes, got %d", len(report.Votes))
	}
}

func TestRunFiresSecondWaveWhenFirstFails(t *testing.T) {
	stub := &stubCompleter{
		errs: map[string]error{
			"a/1": errors.New("boom"), "a/2": errors.New("boom"), "a/3": errors.New("boom"),
		},
		answers: map[string]string{"b/1": "yes", "b/2": "yes"},
	}
	racer := New(stub, testTimings(), nil)

	report := racer.Run(context.Background(), "q", models("a/1", "a/2", "a/3"), models("b/1", "b/2"), 3)

	if !report.Wave2Fired {
		t.Fatalf("wave 2 should fire after wave 1 drains below target")
	}
	if !stub.called("b/1") || !stub.called("b/2") {
		t.Fatalf("backups were not launched: %v", stub.calls)
	}
	if report.Resolution != ResolvedExhausted {
		t.Fatalf("resolution = %v, want exhausted", report.Resolution)
	}
	if len(report.Votes) != 2 {
		t.Fatalf("expected 2 backup votes, got %d", len(report.Votes))
	}
}

func TestRunDiscardsEmptyAnswers(t *testing.T) {
	stub := &stubCompleter{answers: map[string]string{
		"a/1": "   \n", "a/2": "real answer", "a/3": "",
	}}
	racer := New(stub, testTimings(), nil)

	report := racer.Run(context.Background(), "q", models("a/1", "a/2", "a/3"), nil, 3)

	if len(report.Votes) != 1 {
		t.Fatalf("whitespace answers must not vote, got %d votes", len(report.Votes))
	}
	if report.Votes[0].Model != "a/2" {
		t.Fatalf("wrong voter: %s", report.Votes[0].Model)
	}
	empties := 0
	for _, o := range report.Outcomes {
		if o.Error == "empty response" {
			empties++
		}
	}
	if empties != 2 {
		t.Fatalf("expected 2 empty-response outcomes, got %d", empties)
	}
}

func TestRunVoteCountNeverExceedsLaunches(t *testing.T) {
	stub := &stubCompleter{answers: map[string]string{
		"a/1": "x", "a/2": "x", "b/1": "x",
	}}
	racer := New(stub, testTimings(), nil)

	report := racer.Run(context.Background(), "q", models("a/1", "a/2"), models("b/1"), 5)

	if got, max := len(report.Votes), 3; got > max {
		t.Fatalf("votes %d exceed council+backup size %d", got, max)
	}
}

func TestRunEmptyCouncilResolvesExhausted(t *testing.T) {
	racer := New(&stubCompleter{}, testTimings(), nil)
	report := racer.Run(context.Background(), "q", nil, nil, 3)
	if report.Resolution != ResolvedExhausted {
		t.Fatalf("resolution = %v, want exhausted", report.Resolution)
	}
	if len(report.Votes) != 0 {
		t.Fatalf("expected no votes, got %d", len(report.Votes))
	}
}

package rules

import (
	"context"
	"testing"
	"time"

	"github.com/dec112/prf/internal/store"
)

// fakeStore is an in-memory stand-in for the database, used only to test
// condition evaluation in isolation without a real SQLite fixture.
type fakeStore struct {
	rows map[string]store.Queue
}

func (f fakeStore) QueryQueue(ctx context.Context, uri string) (store.Queue, bool, error) {
	q, ok := f.rows[uri]
	return q, ok, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestExtractSipURI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sip:alice@h:5060", "sip:alice@h"},
		{"<sip:alice@h>", "sip:alice@h"},
		{"tel:+1234", "tel:+1234"},
		{"not a uri", ""},
	}
	for _, tt := range tests {
		if got := extractSipURI(tt.in); got != tt.want {
			t.Errorf("extractSipURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEvaluateRURIFailureInvalidatesRule(t *testing.T) {
	rule := &Rule{RURI: "sip:expected@h"}
	req := Request{RURI: "sip:other@h"}
	ec := EvalContext{Store: fakeStore{}, Now: fixedNow(time.Now())}

	Evaluate(context.Background(), ec, rule, req)
	if rule.Valid {
		t.Errorf("expected rule invalidated on RURI mismatch")
	}
}

func TestEvaluateRURIMatchIncrementsHits(t *testing.T) {
	rule := &Rule{RURI: "sip:expected@h"}
	req := Request{RURI: "sip:expected@h"}
	ec := EvalContext{Store: fakeStore{}, Now: fixedNow(time.Now())}

	Evaluate(context.Background(), ec, rule, req)
	if !rule.Valid || rule.Hits != 1 {
		t.Errorf("expected valid rule with 1 hit, got valid=%v hits=%d", rule.Valid, rule.Hits)
	}
}

func TestEvaluateWeekdayMismatchInvalidates(t *testing.T) {
	rule := &Rule{Weekdays: []string{"Mon"}}
	req := Request{}
	// 2026-07-31 is a Friday.
	ec := EvalContext{Store: fakeStore{}, Now: fixedNow(time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC))}

	Evaluate(context.Background(), ec, rule, req)
	if rule.Valid {
		t.Errorf("expected rule invalidated: Friday not in [Mon]")
	}
}

func TestEvaluateQueuePredicatePicksFirstPassingCandidate(t *testing.T) {
	rule := &Rule{
		Queues: []QueuePredicate{
			{URI: "sip:q1@h", State: "active", Prio: 1},
			{URI: "sip:q2@h", State: "active", Prio: 2},
		},
	}
	store := fakeStore{rows: map[string]store.Queue{
		"sip:q1@h": {State: "inactive"},
		"sip:q2@h": {State: "active"},
	}}
	ec := EvalContext{Store: store, Now: fixedNow(time.Now())}
	req := Request{}

	target := Evaluate(context.Background(), ec, rule, req)
	if target != "sip:q2@h" {
		t.Errorf("expected sip:q2@h chosen, got %q", target)
	}
	if rule.Hits != 1 {
		t.Errorf("expected 1 hit from the queue stage, got %d", rule.Hits)
	}
}

// Scenario 6: queue-predicate fallback. Both candidates fail, default
// fallback is used and its extra header replaces Add.
func TestEvaluateQueueFallback(t *testing.T) {
	rule := &Rule{
		Queues: []QueuePredicate{
			{URI: "sip:q1@h", State: "active", Prio: 1},
			{URI: "sip:q2@h", State: "active", Prio: 2},
		},
		FallbackURI: "sip:fb@h",
		FallbackAdd: []Header{{Name: "X-Fallback", Value: "true"}},
		Add:         []Header{{Name: "X-Original", Value: "keep-me-not"}},
	}
	st := fakeStore{rows: map[string]store.Queue{
		"sip:q1@h": {State: "inactive"},
		"sip:q2@h": {State: "inactive"},
	}}
	ec := EvalContext{Store: st, Now: fixedNow(time.Now())}
	req := Request{}

	target := Evaluate(context.Background(), ec, rule, req)
	if target != "sip:fb@h" {
		t.Errorf("expected fallback sip:fb@h, got %q", target)
	}
	if len(rule.Add) != 1 || rule.Add[0].Name != "X-Fallback" || rule.Add[0].Value != "true" {
		t.Errorf("expected Add replaced with FallbackAdd, got %+v", rule.Add)
	}
}

func TestEvaluateQueueNextHopFallback(t *testing.T) {
	rule := &Rule{Queues: []QueuePredicate{{URI: "sip:q1@h", State: "active", Prio: 1}}}
	st := fakeStore{rows: map[string]store.Queue{
		"sip:q1@h":   {State: "inactive"},
		"sip:next@h": {State: "active"},
	}}
	ec := EvalContext{Store: st, Now: fixedNow(time.Now())}
	req := Request{Next: "sip:next@h"}

	target := Evaluate(context.Background(), ec, rule, req)
	if target != "sip:next@h" {
		t.Errorf("expected next-hop fallback sip:next@h, got %q", target)
	}
}

func TestEvalHeadersConjunctionAcrossDistinctNames(t *testing.T) {
	rule := &Rule{Headers: []Header{
		{Name: "From", Value: "sip:alice@h"},
		{Name: "To", Value: "sip:bob@h"},
	}}
	req := Request{Headers: []Header{
		{Name: "From", Value: "sip:alice@h"},
		{Name: "To", Value: "sip:someoneelse@h"},
	}}
	if evalHeaders(rule, req) {
		t.Errorf("expected conjunction to fail when one of two distinct headers mismatches")
	}
}

func TestEvalHeadersDisjunctionWithinRepeatedName(t *testing.T) {
	rule := &Rule{Headers: []Header{
		{Name: "Via", Value: "sip:a@h"},
		{Name: "Via", Value: "sip:b@h"},
	}}
	req := Request{Headers: []Header{{Name: "Via", Value: "sip:b@h"}}}
	if !evalHeaders(rule, req) {
		t.Errorf("expected disjunction within repeated Via conditions to pass")
	}
}

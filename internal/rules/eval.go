package rules

import (
	"context"
	"strings"
	"time"

	"github.com/dec112/prf/internal/store"
)

// sipSchemes are the recognized URI scheme prefixes extract_sipuri scans
// for (spec.md §4.4 step 2).
var sipSchemes = []string{"sip:", "sips:", "tel:"}

// extractSipURI returns the scheme-delimited URI substring of s, stopping
// at the first ':' after the scheme or at '>', mirroring extract_sipuri.
// Returns "" if no recognized scheme is found.
func extractSipURI(s string) string {
	var start, schemeLen int = -1, 0
	for _, scheme := range sipSchemes {
		if i := strings.Index(s, scheme); i != -1 {
			start = i
			schemeLen = len(scheme)
			break
		}
	}
	if start == -1 {
		return ""
	}
	end := start + schemeLen
	for end < len(s) && s[end] != ':' && s[end] != '>' {
		end++
	}
	return s[start:end]
}

// EvalContext bundles the dependencies condition evaluation needs beyond
// the rule and request themselves: the store for queue-predicate lookups
// and a clock, overridable in tests.
type EvalContext struct {
	Store Store
	Now   func() time.Time
}

// Store is the read-only subset of store.Store the rule engine needs.
type Store interface {
	QueryQueue(ctx context.Context, uri string) (store.Queue, bool, error)
}

func (ec EvalContext) now() time.Time {
	if ec.Now != nil {
		return ec.Now()
	}
	return time.Now()
}

// Evaluate runs the full condition pipeline for one rule against req,
// mutating rule.Valid/Hits and returning the chosen queue target URI,
// if any (spec.md §4.4). Each hard condition is ANDed into rule.Valid; the
// queue predicate only runs while the rule is still valid, matching
// validate_rule's early-exit ordering.
func Evaluate(ctx context.Context, ec EvalContext, rule *Rule, req Request) (queueTarget string) {
	rule.Valid = true

	if !evalRURI(rule, req) {
		rule.Valid = false
	}
	if !evalNextHop(rule, req) {
		rule.Valid = false
	}
	if !evalWeekday(rule, ec) {
		rule.Valid = false
	}
	if !evalTime(rule, ec) {
		rule.Valid = false
	}
	if !evalHeaders(rule, req) {
		rule.Valid = false
	}

	if !rule.Valid {
		return ""
	}

	return evalQueue(ctx, ec, rule, req)
}

func evalRURI(rule *Rule, req Request) bool {
	if req.RURI == "" {
		// no ruri received: pass regardless (cond_ruri's NULL short-circuit)
		return true
	}
	if rule.RURI == "" {
		return true
	}
	ok := MatchPattern(req.RURI, rule.RURI)
	if ok {
		rule.Hits++
	}
	return ok
}

func evalNextHop(rule *Rule, req Request) bool {
	if rule.Next == "" {
		return true
	}
	uri := extractSipURI(req.Next)
	if uri == "" {
		// could not extract: source logs a warning and treats as pass
		return true
	}
	ok := MatchPattern(uri, rule.Next)
	if ok {
		rule.Hits++
	}
	return ok
}

func evalWeekday(rule *Rule, ec EvalContext) bool {
	if len(rule.Weekdays) == 0 {
		return true
	}
	today := TodayAbbrev(ec.now())
	for _, d := range rule.Weekdays {
		if strings.Contains(d, today) {
			rule.Hits++
			return true
		}
	}
	return false
}

func evalTime(rule *Rule, ec EvalContext) bool {
	if len(rule.Times) == 0 {
		return true
	}
	now := ec.now()
	for _, tok := range rule.Times {
		if MatchTime(now, tok) {
			rule.Hits++
			return true
		}
	}
	return false
}

// evalHeaders implements cond_header: conjunction across distinct header
// names, disjunction within consecutive repetitions of the same name
// (rules group repeated header conditions by adjacency, matching the
// source's "name" tracking variable).
func evalHeaders(rule *Rule, req Request) bool {
	if len(rule.Headers) == 0 {
		return true
	}
	res := true
	grp := false
	matched := 0
	lastName := ""
	first := true

	for _, cond := range rule.Headers {
		val, found := lookupHeader(req.Headers, cond.Name)
		if !found {
			continue
		}
		ok := MatchPattern(val, cond.Value)
		if ok {
			res = res && true
			grp = true
			matched++
		} else {
			res = res && false
		}
		if !first && lastName == cond.Name {
			res = res || grp
		} else if !first {
			grp = false
		}
		lastName = cond.Name
		first = false
	}

	if res {
		rule.Hits += matched
	}
	return res
}

func lookupHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// evalQueue implements cond_queue: iterate the rule's queue candidates in
// ascending Prio, querying the store for each; the first candidate whose
// size and state predicates both pass wins. Falling back to the request's
// next hop (implicit state=active check) and finally to the rule's
// declared fallback, replacing Add with FallbackAdd when the fallback path
// is taken and FallbackAdd is non-empty (spec.md §4.4 step 6).
func evalQueue(ctx context.Context, ec EvalContext, rule *Rule, req Request) string {
	if len(rule.Queues) == 0 {
		return ""
	}

	byPrio := orderedByPrio(rule.Queues)
	for _, cand := range byPrio {
		q, ok, err := ec.Store.QueryQueue(ctx, cand.URI)
		if err != nil || !ok {
			continue
		}
		if !MatchQueueSize(cand.SizeOp, cand.SizeVal, q.Length) {
			continue
		}
		if !MatchQueueState(cand.State, string(q.State)) {
			continue
		}
		rule.Hits++
		return cand.URI
	}

	if req.Next != "" {
		suri := extractSipURI(req.Next)
		if suri != "" {
			if q, ok, err := ec.Store.QueryQueue(ctx, suri); err == nil && ok {
				if string(q.State) == string(store.StateActive) {
					return req.Next
				}
			}
		}
	}

	if rule.FallbackURI != "" {
		if len(rule.FallbackAdd) > 0 {
			rule.Add = append([]Header(nil), rule.FallbackAdd...)
		}
		return rule.FallbackURI
	}

	return ""
}

func orderedByPrio(qs []QueuePredicate) []QueuePredicate {
	out := append([]QueuePredicate(nil), qs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Prio < out[j-1].Prio; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

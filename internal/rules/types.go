// Package rules implements the policy-routing engine's declarative rule
// model: YAML loading, condition evaluation, route assembly, rule
// selection, and JSON response synthesis (spec.md §4.3–§4.7).
//
// Grounded throughout on original_source/rngin/src/functions.h (type
// definitions) and functions.c (parse_rule, cond_*, validate_rule,
// select_rule, get_jsonresponse).
package rules

// Header is a single (name, value) pair, used both for a rule's condition
// header patterns and for its "add" action headers.
type Header struct {
	Name  string
	Value string
}

// QueuePredicate is one entry of a rule's ordered queue-candidate list
// (spec.md §3 "Queue predicate"). SizeOp is "", "<", ">" or "="; SizeVal is
// only meaningful when SizeOp is non-empty. State is "" when the predicate
// does not constrain state.
type QueuePredicate struct {
	URI     string
	State   string
	SizeOp  string
	SizeVal int
	Prio    int
}

// TimeToken is one parsed entry of a rule's comma-separated time list:
// either a single TIME hh:mm or a RANGE a-b.
type TimeToken struct {
	Range    bool
	FromHour int
	FromMin  int
	ToHour   int
	ToMin    int
}

// Rule is one in-memory routing rule (spec.md §3 "Rule").
type Rule struct {
	ID        string
	Name      string
	Priority  int
	Transport string

	Weekdays []string // 3-letter abbreviations, e.g. "Mon"
	Times    []TimeToken
	RURI     string // pattern, "" = no condition
	Next     string // pattern, "" = no condition
	Headers  []Header

	Queues []QueuePredicate

	Route       string
	Add         []Header
	FallbackURI string
	FallbackAdd []Header

	// Runtime fields, reset and populated per evaluation. Never shared
	// across concurrent requests; Clone() produces a private copy.
	Valid bool
	Hits  int
	Use   bool
}

// Clone returns a deep-enough copy of r suitable for one request's private
// evaluation state: the mutable Add list and runtime fields are copied so
// concurrent requests evaluating the same cached rule set never interfere
// (spec.md §5 "each request owns its own parsed rule-list instance").
func (r Rule) Clone() Rule {
	c := r
	c.Weekdays = append([]string(nil), r.Weekdays...)
	c.Times = append([]TimeToken(nil), r.Times...)
	c.Headers = append([]Header(nil), r.Headers...)
	c.Queues = append([]QueuePredicate(nil), r.Queues...)
	c.Add = append([]Header(nil), r.Add...)
	c.FallbackAdd = append([]Header(nil), r.FallbackAdd...)
	c.Valid = true
	c.Hits = 0
	c.Use = false
	return c
}

// RuleSet is a parsed, loaded rule file plus the running maxima computed
// during evaluation (spec.md §4.6 "maintain maxprio and maxhits").
type RuleSet struct {
	Rules   []Rule
	MaxPrio int
	MaxHits int
}

// CloneForRequest returns a RuleSet whose rules are private per-request
// clones, safe to mutate during one evaluation.
func (rs RuleSet) CloneForRequest() RuleSet {
	out := RuleSet{Rules: make([]Rule, len(rs.Rules))}
	for i, r := range rs.Rules {
		out.Rules[i] = r.Clone()
	}
	return out
}

// Request is the inbound routing question (spec.md §4.4).
type Request struct {
	RURI    string
	Next    string
	Headers []Header // parsed from the CRLF body
}

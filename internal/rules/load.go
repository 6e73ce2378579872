package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrAmbiguousRoute is returned at load time when two or more rules share
// the same priority and both declare a route action with no other
// distinguishing condition that could be evaluated before any request
// arrives. spec.md §9's Open Question is resolved this way: the original
// source's "last rule wins" behavior for this case is treated as a
// configuration mistake rather than intended semantics (see DESIGN.md).
var ErrAmbiguousRoute = errors.New("rules: ambiguous route: multiple unconditional rules at the same priority declare a route action")

// yamlFile is the top-level YAML shape: a sequence of rule blocks
// (spec.md §4.3).
type yamlFile []yamlRule

type yamlRule struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Priority   int            `yaml:"priority"`
	Default    string         `yaml:"default"`
	Transport  string         `yaml:"transport"`
	Conditions yamlConditions `yaml:"conditions"`
	Actions    yamlActions    `yaml:"actions"`
}

type yamlConditions struct {
	Day    string      `yaml:"day"`
	Time   string      `yaml:"time"`
	RURI   string      `yaml:"ruri"`
	Header string      `yaml:"header"`
	Next   string      `yaml:"next"`
	Queues []yamlQueue `yaml:"queues"`
}

type yamlQueue struct {
	URI   string `yaml:"uri"`
	State string `yaml:"state"`
	Size  string `yaml:"size"`
	Prio  int    `yaml:"prio"`
}

type yamlActions struct {
	Add   string `yaml:"add"`
	Route string `yaml:"route"`
}

// Load parses a rule file's bytes into a RuleSet. Partial rules are
// preserved (missing optional fields leave the in-memory field at its zero
// value, spec.md §4.3's "parser invariants"). A YAML document that does not
// decode at all — the nearest Go equivalent of the source's "parser ends
// in an inconsistent nested-queue state" — fails the load outright.
func Load(raw []byte) (RuleSet, error) {
	var doc yamlFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return RuleSet{}, fmt.Errorf("parse rule file: %w", err)
	}

	rs := RuleSet{Rules: make([]Rule, 0, len(doc))}
	for _, yr := range doc {
		rs.Rules = append(rs.Rules, convertRule(yr))
	}

	if err := checkAmbiguousRoutes(rs.Rules); err != nil {
		return RuleSet{}, err
	}

	return rs, nil
}

func convertRule(yr yamlRule) Rule {
	r := Rule{
		ID:        yr.ID,
		Name:      yr.Name,
		Priority:  yr.Priority,
		Transport: yr.Transport,
		RURI:      yr.Conditions.RURI,
		Next:      yr.Conditions.Next,
		Route:     yr.Actions.Route,
	}

	if yr.Conditions.Day != "" {
		for _, d := range strings.Split(yr.Conditions.Day, ",") {
			if d = strings.TrimSpace(d); d != "" {
				r.Weekdays = append(r.Weekdays, d)
			}
		}
	}

	r.Times = parseTimeTokens(yr.Conditions.Time)
	r.Headers = parseCommaHeaders(yr.Conditions.Header)
	r.Add = parseCommaHeaders(yr.Actions.Add)

	for _, q := range yr.Conditions.Queues {
		op, val := parseSize(q.Size)
		r.Queues = append(r.Queues, QueuePredicate{
			URI:     q.URI,
			State:   q.State,
			SizeOp:  op,
			SizeVal: val,
			Prio:    q.Prio,
		})
	}

	if yr.Default != "" {
		parts := strings.Split(yr.Default, ",")
		r.FallbackURI = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			r.FallbackAdd = parseCommaHeaders(strings.Join(parts[1:], ","))
		}
	}

	return r
}

// parseTimeTokens parses a comma-separated list of "TIME hh:mm" or
// "RANGE hh:mm-hh:mm" tokens (spec.md §4.3).
func parseTimeTokens(field string) []TimeToken {
	if field == "" {
		return nil
	}
	var out []TimeToken
	for _, raw := range strings.Split(field, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		switch {
		case strings.HasPrefix(raw, "TIME "):
			h, m, ok := parseHHMM(strings.TrimPrefix(raw, "TIME "))
			if ok {
				out = append(out, TimeToken{FromHour: h, FromMin: m, ToHour: h, ToMin: m})
			}
		case strings.HasPrefix(raw, "RANGE "):
			rest := strings.TrimPrefix(raw, "RANGE ")
			from, to, ok := strings.Cut(rest, "-")
			if !ok {
				continue
			}
			fh, fm, ok1 := parseHHMM(from)
			th, tm, ok2 := parseHHMM(to)
			if ok1 && ok2 {
				out = append(out, TimeToken{Range: true, FromHour: fh, FromMin: fm, ToHour: th, ToMin: tm})
			}
		}
	}
	return out
}

func parseHHMM(s string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	hh, err1 := strconv.Atoi(strings.TrimSpace(h))
	if !found {
		return hh, 0, err1 == nil
	}
	mm, err2 := strconv.Atoi(strings.TrimSpace(m))
	return hh, mm, err1 == nil && err2 == nil
}

// parseSize splits a "SIZE '<N" predicate ("<5", ">10", "=0") into its
// operator and integer operand, matching check_queuesize's scanner.
func parseSize(s string) (op string, val int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0
	}
	switch s[0] {
	case '<', '>', '=':
		n, err := strconv.Atoi(strings.TrimSpace(s[1:]))
		if err != nil {
			return "", 0
		}
		return string(s[0]), n
	default:
		return "", 0
	}
}

// checkAmbiguousRoutes implements the Open Question decision: two rules at
// the same priority, both unconditional (no ruri/next/day/time/header/queue
// condition) and both declaring a route, can never be distinguished by any
// request and are rejected at load time instead of silently resolved by
// last-wins at request time.
func checkAmbiguousRoutes(rules []Rule) error {
	type key struct {
		prio int
	}
	seen := make(map[key]bool)
	for _, r := range rules {
		if r.Route == "" || !unconditional(r) {
			continue
		}
		k := key{prio: r.Priority}
		if seen[k] {
			return ErrAmbiguousRoute
		}
		seen[k] = true
	}
	return nil
}

func unconditional(r Rule) bool {
	return r.RURI == "" && r.Next == "" && len(r.Weekdays) == 0 &&
		len(r.Times) == 0 && len(r.Headers) == 0 && len(r.Queues) == 0
}

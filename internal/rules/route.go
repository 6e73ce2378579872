package rules

import (
	"fmt"
	"strings"
)

// historyInfoHeader is the header name used for the pre-rewrite URI
// (HINFO in the source).
const historyInfoHeader = "History-Info"

// AssembleRoute computes the outgoing route for a rule that remains valid
// after Evaluate, implementing spec.md §4.5 and cond_setroute.
//
// queueTarget is the URI evalQueue chose, if any. If no target can be
// produced at all, the rule is marked invalid, matching cond_setroute's
// "no route target defined -> invalid" path.
//
// The History-Info header carries the request's pre-rewrite next-hop URI
// (spec.md's own Glossary: "a SIP header carrying the pre-rewrite URI"),
// not the chosen URI — original_source/rngin/src/functions.c's
// cond_setroute builds the header value from extract_sipuri(in->next), the
// request's original next hop, confirming the glossary's wording over the
// abbreviated prose in spec.md §4.5 step 2.
func AssembleRoute(rule *Rule, queueTarget string, req Request) {
	target := queueTarget
	if target == "" {
		target = rule.Route
	}
	if target == "" {
		target = req.Next
		rule.Route = target
	}
	if target == "" {
		rule.Valid = false
		return
	}
	rule.Route = target

	if !MatchPattern(target, req.Next) {
		if suri := extractSipURI(req.Next); suri != "" {
			rule.Add = append(rule.Add, Header{
				Name:  historyInfoHeader,
				Value: fmt.Sprintf("%s;index=1.0", suri),
			})
		}
	}

	if rule.Transport != "" && !strings.Contains(rule.Route, ";transport") {
		rule.Route = fmt.Sprintf("%s;transport=%s", rule.Route, rule.Transport)
	}
}

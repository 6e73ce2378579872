package rules

import "context"

// Route runs the full pipeline described in spec.md §4.4–§4.7 over a private
// rule-set clone: evaluate every rule's conditions, assemble its route where
// still valid, track the running maxima, select the winner, and synthesize
// the JSON response. Any failure along the way — no rule valid, or the
// winning rule fails route assembly — degrades to ErrorResponse, matching
// spec.md §4.7 and §7.
func Route(ctx context.Context, ec EvalContext, rs RuleSet, req Request) Response {
	for i := range rs.Rules {
		r := &rs.Rules[i]
		queueTarget := Evaluate(ctx, ec, r, req)
		if !r.Valid {
			continue
		}
		AssembleRoute(r, queueTarget, req)
		rs.UpdateMaxima(*r)
	}

	Select(&rs)

	chosen, ok := Chosen(rs)
	if !ok {
		return ErrorResponse()
	}
	return BuildResponse(chosen)
}

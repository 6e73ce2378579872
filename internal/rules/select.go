package rules

// Select implements spec.md §4.6 / select_rule: mark every valid rule
// tying the overall maxhits as Use, narrow to those also tying maxprio, and
// if multiple route-bearing rules remain, keep only the last (highest
// index) one.
//
// This is the runtime fallback path for ties that validation at load time
// (see Load's ambiguous-route check, DESIGN.md "Open Question decision")
// cannot predict because they depend on per-request Hits.
func Select(rs *RuleSet) {
	marked := 0
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !r.Valid {
			continue
		}
		if r.Hits == rs.MaxHits {
			r.Use = true
			marked++
		}
	}

	if marked > 1 {
		marked = 0
		for i := range rs.Rules {
			r := &rs.Rules[i]
			if r.Use && r.Priority < rs.MaxPrio {
				r.Use = false
				continue
			}
			if r.Use {
				marked++
			}
		}
	}

	if marked > 1 {
		lastIdx := -1
		for i := range rs.Rules {
			r := &rs.Rules[i]
			if r.Use && r.Route != "" {
				r.Use = false
				lastIdx = i
			}
		}
		if lastIdx != -1 {
			rs.Rules[lastIdx].Use = true
		}
	}
}

// UpdateMaxima folds one rule's Priority/Hits into rs.MaxPrio/MaxHits, only
// while the rule is valid, matching validate_rule's running-maximum update.
func (rs *RuleSet) UpdateMaxima(r Rule) {
	if !r.Valid {
		return
	}
	if r.Priority > rs.MaxPrio {
		rs.MaxPrio = r.Priority
	}
	if r.Hits > rs.MaxHits {
		rs.MaxHits = r.Hits
	}
}

// Chosen returns the single rule marked Use, if any.
func Chosen(rs RuleSet) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Use && r.Valid {
			return r, true
		}
	}
	return Rule{}, false
}

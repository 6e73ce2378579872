package rules

import (
	"testing"
	"time"
)

func TestMatchPatternExact(t *testing.T) {
	if !MatchPattern("sip:alice@h", "sip:alice@h") {
		t.Errorf("expected exact match to pass")
	}
	if MatchPattern("sip:alice@h", "sip:bob@h") {
		t.Errorf("expected exact mismatch to fail")
	}
}

func TestMatchPatternEmptyIsNoCondition(t *testing.T) {
	if !MatchPattern("anything", "") {
		t.Errorf("empty pattern must always pass")
	}
}

func TestMatchPatternSubstring(t *testing.T) {
	if !MatchPattern("sip:alice@example.com", "_alice@example") {
		t.Errorf("expected substring match to pass")
	}
	if MatchPattern("sip:bob@example.com", "_alice@example") {
		t.Errorf("expected substring mismatch to fail")
	}
}

// Pattern match monotonicity: a prefix-stripped _X pattern accepts a
// superset of what literal X accepts.
func TestPatternMonotonicity(t *testing.T) {
	candidates := []string{"X", "prefixX", "Xsuffix", "noMatch", "preXsuf"}
	literal := "X"
	substr := "_X"
	for _, c := range candidates {
		if MatchPattern(c, literal) && !MatchPattern(c, substr) {
			t.Errorf("candidate %q: literal matched but substring pattern did not", c)
		}
	}
}

func TestMatchQueueState(t *testing.T) {
	if !MatchQueueState("", "active") {
		t.Errorf("empty want must always pass")
	}
	if !MatchQueueState("active", "active") {
		t.Errorf("expected equal states to match")
	}
	if MatchQueueState("active", "inactive") {
		t.Errorf("expected differing states to fail")
	}
}

func TestMatchQueueSize(t *testing.T) {
	tests := []struct {
		op        string
		want, got int
		expect    bool
	}{
		{"", 0, 99, true},
		{"=", 5, 5, true},
		{"=", 5, 6, false},
		{"<", 5, 4, true},
		{"<", 5, 5, false},
		{">", 5, 6, true},
		{">", 5, 5, false},
	}
	for _, tt := range tests {
		if got := MatchQueueSize(tt.op, tt.want, tt.got); got != tt.expect {
			t.Errorf("MatchQueueSize(%q, %d, %d) = %v, want %v", tt.op, tt.want, tt.got, got, tt.expect)
		}
	}
}

func TestMatchTimeExact(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 30, 0, 0, time.UTC)
	tok := TimeToken{FromHour: 14, FromMin: 30, ToHour: 14, ToMin: 30}
	if !MatchTime(now, tok) {
		t.Errorf("expected exact minute match")
	}
	tok2 := TimeToken{FromHour: 14, FromMin: 31, ToHour: 14, ToMin: 31}
	if MatchTime(now, tok2) {
		t.Errorf("expected no match at a different minute")
	}
}

func TestMatchTimeRange(t *testing.T) {
	tok := TimeToken{Range: true, FromHour: 9, FromMin: 0, ToHour: 17, ToMin: 0}
	inside := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 7, 31, 20, 0, 0, 0, time.UTC)
	if !MatchTime(inside, tok) {
		t.Errorf("expected 12:00 to be inside 09:00-17:00")
	}
	if MatchTime(outside, tok) {
		t.Errorf("expected 20:00 to be outside 09:00-17:00")
	}
}

// Time-range wrap: if a > b, RANGE a-b accepts exactly the complement
// (modulo day) of RANGE b-a, for instants between the earlier of the two
// "from" hours and midnight. check_time anchors both range endpoints to
// "now"'s own calendar date and only pushes "to" into the next day, so the
// after-midnight hours before the earlier "from" (00:00-05:59 here) fall
// outside both ranges rather than inside the wrapped one — a known
// limitation of the grounded algorithm, not exercised by this property test.
func TestMatchTimeRangeWrap(t *testing.T) {
	wrap := TimeToken{Range: true, FromHour: 22, FromMin: 0, ToHour: 6, ToMin: 0}  // 22:00-06:00
	plain := TimeToken{Range: true, FromHour: 6, FromMin: 0, ToHour: 22, ToMin: 0} // 06:00-22:00

	samples := []int{6, 7, 12, 21, 23}
	for _, hour := range samples {
		now := time.Date(2026, 7, 31, hour, 0, 0, 0, time.UTC)
		a := MatchTime(now, wrap)
		b := MatchTime(now, plain)
		if a == b {
			t.Errorf("hour %02d:00: wrap=%v plain=%v, expected exact complement", hour, a, b)
		}
	}
}

func TestTodayAbbrev(t *testing.T) {
	// 2026-07-31 is a Friday.
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	if got := TodayAbbrev(now); got != "Fri" {
		t.Errorf("expected Fri, got %s", got)
	}
}

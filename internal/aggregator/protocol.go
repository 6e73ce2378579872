package aggregator

import (
	"encoding/json"
	"log"

	"github.com/dec112/prf/internal/store"
)

// Subprotocol is the WebSocket subprotocol negotiated with every dequeuer
// endpoint (spec.md §6).
const Subprotocol = "dec112-mgmt"

// Outbound management messages. These are the exact literals the source
// sends; field order does not matter for JSON but the message set is fixed.
var (
	msgGetHealth         = mustMarshal(outbound{Method: "get_health"})
	msgSubscribeHealth   = mustMarshal(outbound{Method: "subscribe_health"})
	msgUnsubscribeHealth = mustMarshal(outbound{Method: "unsubscribe_health"})
)

type outbound struct {
	Method string `json:"method"`
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// inbound is the shape of every frame the dequeuer sends back: either a
// response to a method we sent (Method set) or an unsolicited notification
// (Event set), always carrying Code and, when it concerns health, Health.
type inbound struct {
	Method string      `json:"method"`
	Event  string      `json:"event"`
	Code   int         `json:"code"`
	Health *healthBody `json:"health"`
}

type healthBody struct {
	Sip      sipInfo                 `json:"sip"`
	Services map[string]serviceEntry `json:"services"`
}

type sipInfo struct {
	URI   string `json:"uri"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type serviceEntry struct {
	QueueURI    string `json:"queue_uri"`
	Active      *int   `json:"active"`
	ActiveCalls int    `json:"active_calls"`
}

// discriminator identifies what kind of frame was received. The source's
// queue_JSONmethod has `if (... && (code = 200))`, an assignment where
// equality was meant, whose observed effect is "always branch taken" for
// any recognized method/event. Per spec.md §9 this reimplementation
// preserves that observed behavior explicitly: Code is never consulted, and
// every get_health response and health notification is treated as carrying
// a health payload. subscribe_health and unsubscribe_health responses only
// drive state transitions; their payload is not parsed.
type discriminator int

const (
	frameUnknown discriminator = iota
	frameGetHealthResponse
	frameSubscribeHealthResponse
	frameUnsubscribeHealthResponse
	frameHealthNotification
)

func classify(f inbound) discriminator {
	switch {
	case f.Method == "get_health":
		return frameGetHealthResponse
	case f.Method == "subscribe_health":
		return frameSubscribeHealthResponse
	case f.Method == "unsubscribe_health":
		return frameUnsubscribeHealthResponse
	case f.Event == "health":
		return frameHealthNotification
	default:
		return frameUnknown
	}
}

func parseFrame(raw []byte) (inbound, discriminator, error) {
	var f inbound
	if err := json.Unmarshal(raw, &f); err != nil {
		return inbound{}, frameUnknown, err
	}
	return f, classify(f), nil
}

// StateFromCode maps the wire integer in a service entry's "active" field to
// the textual queue state (spec.md §4.2). A missing field means undefined.
func StateFromCode(code *int) store.State {
	if code == nil {
		return store.StateUndefined
	}
	switch *code {
	case 0:
		return store.StateInactive
	case 1:
		return store.StateActive
	case 2:
		return store.StateDisabled
	case 3:
		return store.StateFull
	case 4:
		return store.StateStandby
	default:
		return store.StateUndefined
	}
}

// StateToCode is the inverse mapping, used only by the state-mapping
// round-trip property test (spec.md §8).
func StateToCode(s store.State) int {
	switch s {
	case store.StateInactive:
		return 0
	case store.StateActive:
		return 1
	case store.StateDisabled:
		return 2
	case store.StateFull:
		return 3
	case store.StateStandby:
		return 4
	default:
		return -1
	}
}

// checkRegistered logs a warning when the dequeuer's reported SIP state is
// not "registered", matching original_source/qngin/src/functions.c's
// warning in queue_JSONservices. Reconciliation proceeds either way.
func checkRegistered(dequeuer string, sip sipInfo) {
	if sip.State != "registered" {
		log.Printf("qngin: warning: dequeuer %s reports sip state %q, expected \"registered\"", dequeuer, sip.State)
	}
}

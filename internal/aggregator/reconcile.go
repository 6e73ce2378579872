package aggregator

import (
	"context"
	"fmt"

	"github.com/dec112/prf/internal/store"
)

// Reconcile implements the queue reconciliation algorithm, spec.md §4.2,
// grounded on original_source/qngin/src/functions.c's queue_updatebyuri.
//
// It reads the current rows owned by dequeuer, diffs them against the
// incoming services map, and applies the resulting tagged items to st.
// A storage error on one item is logged by Apply's caller and does not
// abort the rest of the batch (spec.md §7).
func Reconcile(ctx context.Context, st store.Store, dequeuer string, services map[string]serviceEntry) error {
	existing, err := st.ListByDequeuer(ctx, dequeuer)
	if err != nil {
		return fmt.Errorf("reconcile: list %s: %w", dequeuer, err)
	}

	// Tag every existing row DELETE; incoming services will clear the tag.
	byURI := make(map[string]*store.Item, len(existing))
	items := make([]store.Item, 0, len(existing)+len(services))
	for _, q := range existing {
		items = append(items, store.Item{Queue: q, Action: store.ActionDelete})
	}
	for i := range items {
		byURI[items[i].Queue.URI] = &items[i]
	}

	for _, svc := range services {
		newState := StateFromCode(svc.Active)
		newLength := svc.ActiveCalls

		if it, ok := byURI[svc.QueueURI]; ok {
			// Row exists: clear the DELETE tag.
			if it.Action == store.ActionUpdate || it.Action == store.ActionCreate {
				// Already retagged on an earlier pass over this same
				// notification (the same queue_uri listed under more than
				// one services key): refresh state and length from this
				// later entry.
				it.Queue.State = newState
				it.Queue.Length = newLength
				continue
			}
			if it.Queue.State != newState || it.Queue.Length != newLength {
				it.Action = store.ActionUpdate
				it.Queue.State = newState
				it.Queue.Length = newLength
			} else {
				it.Action = store.ActionNone
			}
			continue
		}

		// No match: new row.
		nq := store.Queue{
			URI:      svc.QueueURI,
			State:    newState,
			Dequeuer: dequeuer,
			Max:      0,
			Length:   newLength,
		}
		items = append(items, store.Item{Queue: nq, Action: store.ActionCreate})
		// Re-point byURI in case the same uri reappears in this same
		// notification map (map iteration order is otherwise arbitrary).
		byURI[svc.QueueURI] = &items[len(items)-1]
	}

	return st.Apply(ctx, items)
}

// Purge deletes every row owned by dequeuer. Invoked when an endpoint's
// connection fails (DISCONNECTED), when it closes or its unsubscribe is
// acknowledged (CLOSED), and once per known dequeuer at process exit
// (spec.md §4.1 "Disconnect policy"). Entering CLOSING does not purge by
// itself.
func Purge(ctx context.Context, st store.Store, dequeuer string) error {
	if dequeuer == "" {
		return nil
	}
	if err := st.PurgeDequeuer(ctx, dequeuer); err != nil {
		return fmt.Errorf("purge %s: %w", dequeuer, err)
	}
	return nil
}

package ingest

import (
	"context"
	"fmt"
)

// Action is the decision the deduplicator makes for a normalized show.
type Action int

const (
	ActionInsert Action = iota
	ActionUpdate
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Reconcile decides whether show is new, changed or already stored. Stored
// shows are never deleted, only inserted or replaced.
func Reconcile(ctx context.Context, show Show, lookup Lookup) (Action, error) {
	existing, found, err := lookup.Lookup(ctx, show.VenueID, show.SourceID)
	if err != nil {
		return ActionSkip, NewError(
			KindStoreUnavailable,
			fmt.Sprintf("lookup %s/%s", show.VenueID, show.SourceID),
			err,
		)
	}
	if !found {
		return ActionInsert, nil
	}
	if existing.Equal(show) {
		return ActionSkip, nil
	}
	return ActionUpdate, nil
}

// Apply writes show to the sink according to action.
func Apply(ctx context.Context, sink Sink, show Show, action Action) error {
	if action == ActionSkip {
		return nil
	}
	err := sink.Upsert(ctx, show)
	if err != nil {
		return NewError(
			KindStoreUnavailable,
			fmt.Sprintf("%s %s/%s", action, show.VenueID, show.SourceID),
			err,
		)
	}
	return nil
}

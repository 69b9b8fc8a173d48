// Package ledger holds the pure rules over an item's status history.
package ledger

import (
	"slices"
	"time"

	"github.com/Makepad-fr/tada/internal/model"
)

// NewEvent builds the event recording status s for itemID at the given time.
// The event id is assigned by the store when it is appended.
func NewEvent(itemID int64, s model.Status, at time.Time) model.StatusEvent {
	return model.StatusEvent{ItemID: itemID, Status: s, Timestamp: at}
}

// Current returns the event with the latest timestamp. Events are expected in
// insertion order; on equal timestamps the later-appended event wins.
func Current(events []model.StatusEvent) (model.StatusEvent, error) {
	if len(events) == 0 {
		return model.StatusEvent{}, model.ErrEmptyHistory
	}
	cur := events[0]
	for _, ev := range events[1:] {
		if !ev.Timestamp.Before(cur.Timestamp) {
			cur = ev
		}
	}
	return cur, nil
}

// History returns a copy of events ordered oldest first. Events sharing a
// timestamp keep their insertion order.
func History(events []model.StatusEvent) []model.StatusEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.StatusEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// Project derives the caller-facing view of an item.
func Project(it model.Item) (model.View, error) {
	cur, err := Current(it.History)
	if err != nil {
		return model.View{}, err
	}
	return model.View{
		ID:             it.ID,
		Description:    it.Description,
		CreatedAt:      it.CreatedAt,
		CurrentStatus:  cur.Status,
		LastModifiedAt: cur.Timestamp,
	}, nil
}

package todo

import (
	"context"
	"time"

	"github.com/Makepad-fr/tada/internal/model"
)

// Store is the persistence collaborator. Do runs fn as one unit of work:
// everything fn writes through tx commits together when fn returns nil and is
// discarded otherwise. Implementations release their session on every path.
type Store interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside a unit of work.
// Lookups of a missing item return an error matching model.ErrItemNotFound.
type Tx interface {
	CreateItem(ctx context.Context, description string, createdAt time.Time) (int64, error)
	UpdateDescription(ctx context.Context, id int64, description string) error
	// AddStatusEvent appends ev to its item's ledger and returns the new event id.
	AddStatusEvent(ctx context.Context, ev model.StatusEvent) (int64, error)
	GetItemWithHistory(ctx context.Context, id int64) (model.Item, error)
	// ListItemsWithHistory returns every item ordered by id.
	ListItemsWithHistory(ctx context.Context) ([]model.Item, error)
	DeleteStatusEvents(ctx context.Context, itemID int64) error
	DeleteItem(ctx context.Context, id int64) error
}

// Clock is the time source for creation and status timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Package memstore is an in-memory transactional todo.Store. Each unit of
// work runs against a clone of the state which replaces the live state only
// when the work succeeds.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

// Snapshot is the serialisable form of the store.
type Snapshot struct {
	NextItemID  int64        `json:"next_item_id"`
	NextEventID int64        `json:"next_event_id"`
	Items       []model.Item `json:"items"`
}

// State is the mutable store content. It implements todo.Tx.
type State struct {
	nextItemID  int64
	nextEventID int64
	items       map[int64]*model.Item
}

var _ todo.Tx = (*State)(nil)

// NewState returns an empty state.
func NewState() *State {
	return &State{nextItemID: 1, nextEventID: 1, items: map[int64]*model.Item{}}
}

// StateFromSnapshot rebuilds a state, repairing id counters that fall behind
// the stored ids.
func StateFromSnapshot(snap Snapshot) *State {
	st := NewState()
	for _, it := range snap.Items {
		c := it.Clone()
		st.items[c.ID] = &c
		if c.ID >= st.nextItemID {
			st.nextItemID = c.ID + 1
		}
		for _, ev := range c.History {
			if ev.ID >= st.nextEventID {
				st.nextEventID = ev.ID + 1
			}
		}
	}
	st.nextItemID = max(st.nextItemID, snap.NextItemID)
	st.nextEventID = max(st.nextEventID, snap.NextEventID)
	return st
}

// Snapshot exports the state with items ordered by id.
func (st *State) Snapshot() Snapshot {
	snap := Snapshot{NextItemID: st.nextItemID, NextEventID: st.nextEventID}
	snap.Items = make([]model.Item, 0, len(st.items))
	for _, id := range st.ids() {
		snap.Items = append(snap.Items, st.items[id].Clone())
	}
	return snap
}

// Clone deep-copies the state.
func (st *State) Clone() *State {
	out := &State{nextItemID: st.nextItemID, nextEventID: st.nextEventID, items: make(map[int64]*model.Item, len(st.items))}
	for id, it := range st.items {
		c := it.Clone()
		out.items[id] = &c
	}
	return out
}

func (st *State) ids() []int64 {
	ids := make([]int64, 0, len(st.items))
	for id := range st.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (st *State) CreateItem(_ context.Context, description string, createdAt time.Time) (int64, error) {
	id := st.nextItemID
	st.nextItemID++
	st.items[id] = &model.Item{ID: id, Description: description, CreatedAt: createdAt}
	return id, nil
}

func (st *State) UpdateDescription(_ context.Context, id int64, description string) error {
	it, ok := st.items[id]
	if !ok {
		return model.ItemNotFound(id)
	}
	it.Description = description
	return nil
}

func (st *State) AddStatusEvent(_ context.Context, ev model.StatusEvent) (int64, error) {
	it, ok := st.items[ev.ItemID]
	if !ok {
		return 0, model.ItemNotFound(ev.ItemID)
	}
	ev.ID = st.nextEventID
	st.nextEventID++
	it.History = append(it.History, ev)
	return ev.ID, nil
}

func (st *State) GetItemWithHistory(_ context.Context, id int64) (model.Item, error) {
	it, ok := st.items[id]
	if !ok {
		return model.Item{}, model.ItemNotFound(id)
	}
	return it.Clone(), nil
}

func (st *State) ListItemsWithHistory(_ context.Context) ([]model.Item, error) {
	out := make([]model.Item, 0, len(st.items))
	for _, id := range st.ids() {
		out = append(out, st.items[id].Clone())
	}
	return out, nil
}

func (st *State) DeleteStatusEvents(_ context.Context, itemID int64) error {
	it, ok := st.items[itemID]
	if !ok {
		return model.ItemNotFound(itemID)
	}
	it.History = nil
	return nil
}

func (st *State) DeleteItem(_ context.Context, id int64) error {
	if _, ok := st.items[id]; !ok {
		return model.ItemNotFound(id)
	}
	delete(st.items, id)
	return nil
}

// Store serialises units of work over a single State.
type Store struct {
	mu    sync.Mutex
	state *State
}

var _ todo.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{state: NewState()}
}

// Do runs fn on a copy of the state and keeps the copy only if fn succeeds.
func (s *Store) Do(ctx context.Context, fn func(tx todo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.Clone()
	if err := fn(work); err != nil {
		return err
	}
	s.state = work
	return nil
}

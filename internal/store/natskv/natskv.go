// Package natskv stores the todo ledger in a NATS JetStream key-value bucket.
//
// Each item lives under its own key as one JSON document holding the item and
// its full status history, so an item and its events always change together.
// A unit of work buffers its writes and applies them on commit with revision
// checks; a concurrent writer to the same item makes the commit fail with
// ErrConflict instead of overwriting.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "TADA_ITEMS"

const (
	itemPrefix  = "item."
	itemSeqKey  = "seq.item"
	eventSeqKey = "seq.event"
)

// ErrConflict reports that another writer changed a key during the unit of work.
var ErrConflict = errors.New("concurrent modification")

// bucket is the subset of jetstream.KeyValue the store uses.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error)
}

type Store struct {
	kv bucket
}

var _ todo.Store = (*Store)(nil)

// New opens the named bucket, creating it if it doesn't exist.
func New(ctx context.Context, js jetstream.JetStream, name string) (*Store, error) {
	if name == "" {
		name = DefaultBucket
	}
	kv, err := js.KeyValue(ctx, name)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      name,
			Description: "tada todo items",
			History:     5,
		})
		if err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return &Store{kv: kv}, nil
}

// document is the stored form of one item.
type document struct {
	Item model.Item `json:"item"`
}

func itemKey(id int64) string { return itemPrefix + strconv.FormatInt(id, 10) }

func (s *Store) Do(ctx context.Context, fn func(tx todo.Tx) error) error {
	tx := &kvTx{kv: s.kv, loaded: map[int64]*entry{}}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type entry struct {
	doc      *document // nil when the key is absent or deleted
	revision uint64    // 0 when the key was absent at load
	dirty    bool
}

type kvTx struct {
	kv     bucket
	loaded map[int64]*entry
	// ids reserved by this unit of work, in creation order
	created []int64
}

func (t *kvTx) load(ctx context.Context, id int64) (*entry, error) {
	if e, ok := t.loaded[id]; ok {
		return e, nil
	}
	e := &entry{}
	kve, err := t.kv.Get(ctx, itemKey(id))
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("get item %d: %w", id, err)
	default:
		var doc document
		if err := json.Unmarshal(kve.Value(), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal item %d: %w", id, err)
		}
		e.doc = &doc
		e.revision = kve.Revision()
	}
	t.loaded[id] = e
	return e, nil
}

func (t *kvTx) existing(ctx context.Context, id int64) (*entry, error) {
	e, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.doc == nil {
		return nil, model.ItemNotFound(id)
	}
	return e, nil
}

// next reserves the next value of a sequence key. Reserved values are never
// handed out twice, even if the unit of work is later abandoned.
func (t *kvTx) next(ctx context.Context, key string) (int64, error) {
	for attempt := 0; attempt < 8; attempt++ {
		kve, err := t.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			if _, err := t.kv.Create(ctx, key, []byte("1")); err == nil {
				return 1, nil
			} else if !errors.Is(err, jetstream.ErrKeyExists) {
				return 0, fmt.Errorf("create %s: %w", key, err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", key, err)
		}
		cur, err := strconv.ParseInt(string(kve.Value()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		n := cur + 1
		_, err = t.kv.Update(ctx, key, []byte(strconv.FormatInt(n, 10)), kve.Revision())
		if err == nil {
			return n, nil
		}
		if err = conflict(err); !errors.Is(err, ErrConflict) {
			return 0, fmt.Errorf("update %s: %w", key, err)
		}
	}
	return 0, fmt.Errorf("reserve %s: %w", key, ErrConflict)
}

func (t *kvTx) CreateItem(ctx context.Context, description string, createdAt time.Time) (int64, error) {
	id, err := t.next(ctx, itemSeqKey)
	if err != nil {
		return 0, err
	}
	t.loaded[id] = &entry{
		doc:   &document{Item: model.Item{ID: id, Description: description, CreatedAt: createdAt}},
		dirty: true,
	}
	t.created = append(t.created, id)
	return id, nil
}

func (t *kvTx) UpdateDescription(ctx context.Context, id int64, description string) error {
	e, err := t.existing(ctx, id)
	if err != nil {
		return err
	}
	e.doc.Item.Description = description
	e.dirty = true
	return nil
}

func (t *kvTx) AddStatusEvent(ctx context.Context, ev model.StatusEvent) (int64, error) {
	e, err := t.existing(ctx, ev.ItemID)
	if err != nil {
		return 0, err
	}
	if ev.ID, err = t.next(ctx, eventSeqKey); err != nil {
		return 0, err
	}
	e.doc.Item.History = append(e.doc.Item.History, ev)
	e.dirty = true
	return ev.ID, nil
}

func (t *kvTx) GetItemWithHistory(ctx context.Context, id int64) (model.Item, error) {
	e, err := t.existing(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	return e.doc.Item.Clone(), nil
}

func (t *kvTx) ListItemsWithHistory(ctx context.Context) ([]model.Item, error) {
	keys, err := t.kv.Keys(ctx)
	if err != nil && !errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, fmt.Errorf("list item keys: %w", err)
	}
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, itemPrefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(k, itemPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range t.created {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		e, err := t.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.doc == nil {
			continue // deleted between Keys and Get
		}
		items = append(items, e.doc.Item.Clone())
	}
	return items, nil
}

func (t *kvTx) DeleteStatusEvents(ctx context.Context, itemID int64) error {
	e, err := t.existing(ctx, itemID)
	if err != nil {
		return err
	}
	e.doc.Item.History = nil
	e.dirty = true
	return nil
}

func (t *kvTx) DeleteItem(ctx context.Context, id int64) error {
	e, err := t.existing(ctx, id)
	if err != nil {
		return err
	}
	e.doc = nil
	e.dirty = true
	return nil
}

// commit writes every dirty item. Items are independent keys, so atomicity
// holds per item: each document carries the item together with its events.
func (t *kvTx) commit(ctx context.Context) error {
	ids := make([]int64, 0, len(t.loaded))
	for id, e := range t.loaded {
		if e.dirty {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	for _, id := range ids {
		e := t.loaded[id]
		key := itemKey(id)
		if e.doc == nil {
			if e.revision == 0 {
				continue
			}
			if err := t.kv.Delete(ctx, key, jetstream.LastRevision(e.revision)); err != nil {
				return fmt.Errorf("delete item %d: %w", id, conflict(err))
			}
			continue
		}
		data, err := json.Marshal(e.doc)
		if err != nil {
			return fmt.Errorf("marshal item %d: %w", id, err)
		}
		if e.revision == 0 {
			_, err = t.kv.Create(ctx, key, data)
		} else {
			_, err = t.kv.Update(ctx, key, data, e.revision)
		}
		if err != nil {
			return fmt.Errorf("store item %d: %w", id, conflict(err))
		}
	}
	return nil
}

func conflict(err error) error {
	var apiErr *jetstream.APIError
	if errors.Is(err, jetstream.ErrKeyExists) ||
		(errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

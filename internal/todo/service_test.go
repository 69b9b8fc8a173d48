package todo_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/memstore"
	"github.com/Makepad-fr/tada/internal/todo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*todo.Service, *memstore.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := memstore.New()
	return todo.New(store, todo.WithClock(clock)), store, clock
}

func historyLen(t *testing.T, svc *todo.Service, id int64) int {
	t.Helper()
	h, err := svc.History(context.Background(), id)
	require.NoError(t, err)
	return len(h)
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)

	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, v.CurrentStatus)
	assert.Equal(t, clock.Now(), v.CreatedAt)
	assert.Equal(t, v.CreatedAt, v.LastModifiedAt)

	hist, err := svc.History(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.StatusNew, hist[0].Status)
	assert.Equal(t, v.CreatedAt, hist[0].Timestamp)
	assert.Equal(t, v.ID, hist[0].ItemID)
}

func TestCreateWithInitialStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	v, err := svc.Create(ctx, "x", "deferred")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeferred, v.CurrentStatus)

	_, err = svc.Create(ctx, "x", "later")
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 1, "rejected create stores nothing")
}

func TestCreateRejectsBadDescription(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), "", "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = svc.Create(context.Background(), "   ", "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestIdempotentStatusUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)
	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	first, err := svc.Update(ctx, v.ID, "", "Started")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.Update(ctx, v.ID, "", "Started")
	require.NoError(t, err)

	assert.Equal(t, 2, historyLen(t, svc, v.ID))
	assert.Equal(t, first.LastModifiedAt, second.LastModifiedAt, "no-op keeps the last change time")

	got, err := svc.Find(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, got.CurrentStatus)
}

func TestCaseInsensitiveNormalization(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)
	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)

	clock.Advance(time.Second)
	got, err := svc.Update(ctx, v.ID, "", "STARTED")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, got.CurrentStatus)

	clock.Advance(time.Second)
	got, err = svc.Update(ctx, v.ID, "", "started")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, got.CurrentStatus)
	assert.Equal(t, 2, historyLen(t, svc, v.ID))
}

func TestInvalidStatusLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, v.ID, "new description", "bogus")
	require.ErrorIs(t, err, model.ErrInvalidStatus)
	var se *model.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bogus", se.Value)

	got, err := svc.Find(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Description, "description change rolled back with the status")
	assert.Equal(t, 1, historyLen(t, svc, v.ID))
}

func TestBackwardTransitionAllowed(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)
	v, err := svc.Create(ctx, "x", "Completed")
	require.NoError(t, err)

	clock.Advance(time.Second)
	got, err := svc.Update(ctx, v.ID, "", "New")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.CurrentStatus)
}

func TestDescriptionUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	v, err := svc.Create(ctx, "Buy milk", "")
	require.NoError(t, err)

	got, err := svc.Update(ctx, v.ID, "BUY MILK", "")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Description, "case-only change is ignored")

	got, err = svc.Update(ctx, v.ID, "Buy oat milk", "")
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", got.Description)
	assert.Equal(t, 1, historyLen(t, svc, v.ID))

	long := make([]byte, model.MaxDescriptionLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Update(ctx, v.ID, string(long), "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestCascadingDelete(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)
	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)
	_, err = svc.Update(ctx, v.ID, "", "Started")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, v.ID))

	_, err = svc.Find(ctx, v.ID)
	assert.ErrorIs(t, err, model.ErrItemNotFound)
	_, err = svc.History(ctx, v.ID)
	assert.ErrorIs(t, err, model.ErrItemNotFound)

	err = store.Do(ctx, func(tx todo.Tx) error {
		items, err := tx.ListItemsWithHistory(ctx)
		require.NoError(t, err)
		for _, it := range items {
			for _, ev := range it.History {
				assert.NotEqual(t, v.ID, ev.ItemID)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestUnknownIDFailsUniformly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.Find(ctx, 99)
	assert.ErrorIs(t, err, model.ErrItemNotFound)
	_, err = svc.Update(ctx, 99, "x", "Started")
	assert.ErrorIs(t, err, model.ErrItemNotFound)
	err = svc.Delete(ctx, 99)
	assert.ErrorIs(t, err, model.ErrItemNotFound)

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(99), nf.ID)
}

func TestListOrderedByID(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)
	for _, d := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, d, "")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := svc.Update(ctx, 2, "", "Completed")
	require.NoError(t, err)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for i, v := range views {
		assert.Equal(t, int64(i+1), v.ID)
	}
	assert.Equal(t, model.StatusCompleted, views[1].CurrentStatus)
}

func TestSameTimestampLatestAppendWins(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t) // clock never advances

	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)
	got, err := svc.Update(ctx, v.ID, "", "Started")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, got.CurrentStatus)
	got, err = svc.Update(ctx, v.ID, "", "Deferred")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeferred, got.CurrentStatus)

	found, err := svc.Find(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeferred, found.CurrentStatus)
}

func TestClockGoingBackwardsStillChangesStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)

	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)
	clock.Advance(-time.Hour)

	for range 2 {
		got, err := svc.Update(ctx, v.ID, "", "Started")
		require.NoError(t, err)
		assert.Equal(t, model.StatusStarted, got.CurrentStatus)
	}

	hist, err := svc.History(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, v.CreatedAt, hist[1].Timestamp, "stamped no earlier than the event it replaces")
	assert.Equal(t, model.StatusStarted, hist[1].Status)
}

func TestBlankDescriptionUpdateIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	v, err := svc.Create(ctx, "Buy milk", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, v.ID, "   ", "Started")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	got, err := svc.Find(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Description)
	assert.Equal(t, model.StatusNew, got.CurrentStatus)
	assert.Equal(t, 1, historyLen(t, svc, v.ID))
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newService(t)

	v, err := svc.Create(ctx, "Buy milk", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, model.StatusNew, v.CurrentStatus)
	assert.Equal(t, 1, historyLen(t, svc, 1))

	clock.Advance(time.Minute)
	v, err = svc.Update(ctx, 1, "", "Started")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, v.CurrentStatus)
	assert.Equal(t, 2, historyLen(t, svc, 1))

	clock.Advance(time.Minute)
	v, err = svc.Update(ctx, 1, "", "STARTED")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, v.CurrentStatus)
	assert.Equal(t, 2, historyLen(t, svc, 1))

	v, err = svc.Update(ctx, 1, "Buy oat milk", "")
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", v.Description)
	assert.Equal(t, 2, historyLen(t, svc, 1))

	require.NoError(t, svc.Delete(ctx, 1))
	_, err = svc.Find(ctx, 1)
	assert.ErrorIs(t, err, model.ErrItemNotFound)
}

// failingStore fails AddStatusEvent after the wrapped tx accepted the
// other writes of the unit of work.
type failingStore struct {
	todo.Store
	err error
}

type failingTx struct {
	todo.Tx
	err error
}

func (s failingStore) Do(ctx context.Context, fn func(tx todo.Tx) error) error {
	return s.Store.Do(ctx, func(tx todo.Tx) error {
		return fn(failingTx{Tx: tx, err: s.err})
	})
}

func (t failingTx) AddStatusEvent(context.Context, model.StatusEvent) (int64, error) {
	return 0, t.err
}

func TestStoreFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newService(t)
	v, err := svc.Create(ctx, "original", "")
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	broken := todo.New(failingStore{Store: store, err: boom}, todo.WithClock(clock))

	clock.Advance(time.Second)
	_, err = broken.Update(ctx, v.ID, "changed", "Started")
	require.ErrorIs(t, err, boom, "persistence errors propagate unchanged")

	got, err := svc.Find(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Description)
	assert.Equal(t, model.StatusNew, got.CurrentStatus)

	_, err = broken.Create(ctx, "never", "")
	require.ErrorIs(t, err, boom)
	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 1, "item is not stored without its creation event")
}

func TestConcurrentUpdatesDoNotDuplicateEvents(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	v, err := svc.Create(ctx, "x", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, v.ID, "", "Started")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, historyLen(t, svc, v.ID))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	n, err := todo.Seed(ctx, svc, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = todo.Seed(ctx, svc, 6)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a non-empty ledger is a no-op")

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 6)
	assert.Equal(t, "Todo Item 1", views[0].Description)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", todo.Outcome(nil))
	assert.Equal(t, "not_found", todo.Outcome(model.ItemNotFound(1)))
	assert.Equal(t, "invalid_status", todo.Outcome(&model.StatusError{Value: "x"}))
	assert.Equal(t, "invalid_argument", todo.Outcome(model.ErrInvalidArgument))
	assert.Equal(t, "empty_history", todo.Outcome(model.ErrEmptyHistory))
	assert.Equal(t, "error", todo.Outcome(errors.New("x")))
}

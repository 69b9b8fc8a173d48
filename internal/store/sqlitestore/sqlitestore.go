// Package sqlitestore persists the todo ledger in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

const schema = `
CREATE TABLE IF NOT EXISTS todo_items (
	item_id     INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT    NOT NULL CHECK (length(description) <= 250),
	create_date INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS todo_item_statuses (
	status_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id     INTEGER NOT NULL REFERENCES todo_items(item_id) ON DELETE CASCADE,
	status      TEXT    NOT NULL CHECK (length(status) <= 20),
	status_date INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todo_item_statuses_item ON todo_item_statuses(item_id);
`

type Store struct {
	db *sql.DB
}

var _ todo.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	// one connection serialises writers and keeps ":memory:" a single database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	ctx := context.Background()
	if path != ":memory:" {
		if err := s.configurePragmas(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragma := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, q := range pragma {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

// Do runs fn inside one database transaction.
func (s *Store) Do(ctx context.Context, fn func(tx todo.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) CreateItem(ctx context.Context, description string, createdAt time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO todo_items (description, create_date) VALUES (?, ?)`,
		description, createdAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert todo_item: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqlTx) UpdateDescription(ctx context.Context, id int64, description string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE todo_items SET description = ? WHERE item_id = ?`, description, id)
	if err != nil {
		return fmt.Errorf("update todo_item: %w", err)
	}
	return expectRow(res, id)
}

func (t *sqlTx) AddStatusEvent(ctx context.Context, ev model.StatusEvent) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO todo_item_statuses (item_id, status, status_date) VALUES (?, ?, ?)`,
		ev.ItemID, string(ev.Status), ev.Timestamp.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert todo_item_status: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqlTx) GetItemWithHistory(ctx context.Context, id int64) (model.Item, error) {
	var (
		it      model.Item
		created int64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT item_id, description, create_date FROM todo_items WHERE item_id = ?`, id,
	).Scan(&it.ID, &it.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, model.ItemNotFound(id)
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("select todo_item: %w", err)
	}
	it.CreatedAt = fromNanos(created)

	rows, err := t.tx.QueryContext(ctx,
		`SELECT status_id, item_id, status, status_date FROM todo_item_statuses WHERE item_id = ? ORDER BY status_id`, id)
	if err != nil {
		return model.Item{}, fmt.Errorf("select todo_item_statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return model.Item{}, err
		}
		it.History = append(it.History, ev)
	}
	return it, rows.Err()
}

func (t *sqlTx) ListItemsWithHistory(ctx context.Context) ([]model.Item, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT item_id, description, create_date FROM todo_items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("select todo_items: %w", err)
	}
	var (
		items []model.Item
		index = map[int64]int{}
	)
	for rows.Next() {
		var (
			it      model.Item
			created int64
		)
		if err := rows.Scan(&it.ID, &it.Description, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan todo_item: %w", err)
		}
		it.CreatedAt = fromNanos(created)
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := t.tx.QueryContext(ctx,
		`SELECT status_id, item_id, status, status_date FROM todo_item_statuses ORDER BY item_id, status_id`)
	if err != nil {
		return nil, fmt.Errorf("select todo_item_statuses: %w", err)
	}
	defer evRows.Close()
	for evRows.Next() {
		ev, err := scanEvent(evRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[ev.ItemID]; ok {
			items[i].History = append(items[i].History, ev)
		}
	}
	return items, evRows.Err()
}

func (t *sqlTx) DeleteStatusEvents(ctx context.Context, itemID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM todo_item_statuses WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("delete todo_item_statuses: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteItem(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM todo_items WHERE item_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo_item: %w", err)
	}
	return expectRow(res, id)
}

func scanEvent(rows *sql.Rows) (model.StatusEvent, error) {
	var (
		ev     model.StatusEvent
		status string
		at     int64
	)
	if err := rows.Scan(&ev.ID, &ev.ItemID, &status, &at); err != nil {
		return model.StatusEvent{}, fmt.Errorf("scan todo_item_status: %w", err)
	}
	ev.Status = model.Status(status)
	ev.Timestamp = fromNanos(at)
	return ev, nil
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ItemNotFound(id)
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

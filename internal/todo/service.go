// Package todo implements item lifecycle and status updates over a Store.
package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Makepad-fr/tada/internal/ledger"
	"github.com/Makepad-fr/tada/internal/metrics"
	"github.com/Makepad-fr/tada/internal/model"
)

// Ledger is the operation set shared by the local Service and remote clients.
type Ledger interface {
	Create(ctx context.Context, description, initialStatus string) (model.View, error)
	Find(ctx context.Context, id int64) (model.View, error)
	List(ctx context.Context) ([]model.View, error)
	Update(ctx context.Context, id int64, description, status string) (model.View, error)
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]model.StatusEvent, error)
}

// Service is stateless; all state lives in the Store.
type Service struct {
	store   Store
	clock   Clock
	logger  *slog.Logger
	metrics *metrics.Recorder
}

var _ Ledger = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics records operation outcomes on r.
func WithMetrics(r *metrics.Recorder) Option { return func(s *Service) { s.metrics = r } }

// New returns a Service persisting through store.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, clock: systemClock{}, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new item with a single status event stamped at its
// creation time. An empty initialStatus means New.
func (s *Service) Create(ctx context.Context, description, initialStatus string) (view model.View, err error) {
	defer s.track("create", time.Now(), &err)

	description, err = model.CleanDescription(description)
	if err != nil {
		return model.View{}, err
	}
	status := model.StatusNew
	if initialStatus != "" {
		if status, err = model.ParseStatus(initialStatus); err != nil {
			return model.View{}, err
		}
	}

	now := s.clock.Now()
	err = s.store.Do(ctx, func(tx Tx) error {
		id, err := tx.CreateItem(ctx, description, now)
		if err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		ev := ledger.NewEvent(id, status, now)
		if ev.ID, err = tx.AddStatusEvent(ctx, ev); err != nil {
			return fmt.Errorf("add status event: %w", err)
		}
		view = model.View{
			ID:             id,
			Description:    description,
			CreatedAt:      now,
			CurrentStatus:  ev.Status,
			LastModifiedAt: ev.Timestamp,
		}
		return nil
	})
	if err != nil {
		return model.View{}, err
	}
	s.metrics.StatusAppended(string(status))
	s.logger.Info("item created", slog.Int64("id", view.ID), slog.String("status", string(status)))
	return view, nil
}

// Find returns the projection of item id.
func (s *Service) Find(ctx context.Context, id int64) (view model.View, err error) {
	defer s.track("find", time.Now(), &err)

	err = s.store.Do(ctx, func(tx Tx) error {
		it, err := tx.GetItemWithHistory(ctx, id)
		if err != nil {
			return err
		}
		view, err = ledger.Project(it)
		return err
	})
	return view, err
}

// List returns every item with its derived current status, ordered by id.
func (s *Service) List(ctx context.Context) (views []model.View, err error) {
	defer s.track("list", time.Now(), &err)

	err = s.store.Do(ctx, func(tx Tx) error {
		items, err := tx.ListItemsWithHistory(ctx)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		views = make([]model.View, 0, len(items))
		for _, it := range items {
			v, err := ledger.Project(it)
			if err != nil {
				return fmt.Errorf("item %d: %w", it.ID, err)
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Update changes the description and/or appends a status event. Empty
// arguments are left alone. A description equal to the stored one ignoring
// case, or a status equal to the current one, is a no-op, so repeating an
// update never grows the ledger.
func (s *Service) Update(ctx context.Context, id int64, description, status string) (view model.View, err error) {
	defer s.track("update", time.Now(), &err)

	var appended *model.StatusEvent
	err = s.store.Do(ctx, func(tx Tx) error {
		it, err := tx.GetItemWithHistory(ctx, id)
		if err != nil {
			return err
		}

		if description != "" && !strings.EqualFold(it.Description, strings.TrimSpace(description)) {
			d, err := model.CleanDescription(description)
			if err != nil {
				return err
			}
			if err := tx.UpdateDescription(ctx, id, d); err != nil {
				return fmt.Errorf("update description: %w", err)
			}
			it.Description = d
		}

		if status != "" {
			next, err := model.ParseStatus(status)
			if err != nil {
				return err
			}
			cur, err := ledger.Current(it.History)
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			if !cur.Status.Same(next) {
				// never stamp before the current event, or it would not become current
				at := s.clock.Now()
				if at.Before(cur.Timestamp) {
					at = cur.Timestamp
				}
				ev := ledger.NewEvent(id, next, at)
				if ev.ID, err = tx.AddStatusEvent(ctx, ev); err != nil {
					return fmt.Errorf("add status event: %w", err)
				}
				it.History = append(it.History, ev)
				appended = &ev
			}
		}

		view, err = ledger.Project(it)
		return err
	})
	if err != nil {
		return model.View{}, err
	}
	if appended != nil {
		s.metrics.StatusAppended(string(appended.Status))
		s.logger.Info("status changed", slog.Int64("id", id), slog.String("status", string(appended.Status)))
	}
	return view, nil
}

// Delete removes item id together with its whole status history.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer s.track("delete", time.Now(), &err)

	return s.store.Do(ctx, func(tx Tx) error {
		if _, err := tx.GetItemWithHistory(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteStatusEvents(ctx, id); err != nil {
			return fmt.Errorf("delete status events: %w", err)
		}
		if err := tx.DeleteItem(ctx, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
}

// History returns the status events of item id, oldest first.
func (s *Service) History(ctx context.Context, id int64) (events []model.StatusEvent, err error) {
	defer s.track("history", time.Now(), &err)

	err = s.store.Do(ctx, func(tx Tx) error {
		it, err := tx.GetItemWithHistory(ctx, id)
		if err != nil {
			return err
		}
		events = ledger.History(it.History)
		return nil
	})
	return events, err
}

func (s *Service) track(op string, start time.Time, errp *error) {
	outcome := Outcome(*errp)
	s.metrics.Op(op, outcome, time.Since(start))
	if *errp != nil {
		s.logger.Debug("operation failed", slog.String("op", op), slog.String("outcome", outcome), slog.String("error", (*errp).Error()))
		return
	}
	s.logger.Debug("operation done", slog.String("op", op))
}

// Outcome names the error kind of err for logs and metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, model.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, model.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, model.ErrEmptyHistory):
		return "empty_history"
	default:
		return "error"
	}
}

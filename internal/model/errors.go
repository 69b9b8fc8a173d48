package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the ledger. Match them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrItemNotFound    = errors.New("item not found")
	// ErrEmptyHistory means an item has no status events. Stored items always
	// carry their creation event, so seeing this is a bug.
	ErrEmptyHistory = errors.New("item has no status history")
)

// StatusError carries the rejected status value.
type StatusError struct {
	Value string
}

func (e *StatusError) Error() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid status %q (want one of %s)", e.Value, strings.Join(names, ", "))
}

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }

// NotFoundError carries the id of the missing item.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item [id=%d] does not exist", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrItemNotFound }

// ItemNotFound builds the not-found error for id.
func ItemNotFound(id int64) error {
	return &NotFoundError{ID: id}
}

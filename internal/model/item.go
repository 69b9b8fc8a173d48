package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLen bounds an item description, in characters.
const MaxDescriptionLen = 250

// Item is the domain model for a tracked todo entry.
// History is owned by value and ordered by insertion (oldest append first).
type Item struct {
	ID          int64         `json:"id"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	History     []StatusEvent `json:"history"`
}

// StatusEvent is an immutable, time-stamped status record of an item.
type StatusEvent struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// View is the projection handed to callers: the item plus its derived
// current status.
type View struct {
	ID             int64     `json:"id"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	CurrentStatus  Status    `json:"current_status"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// CleanDescription trims d and checks it against the description bounds.
func CleanDescription(d string) (string, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return "", fmt.Errorf("%w: description is required", ErrInvalidArgument)
	}
	if n := utf8.RuneCountInString(d); n > MaxDescriptionLen {
		return "", fmt.Errorf("%w: description is %d characters, max %d", ErrInvalidArgument, n, MaxDescriptionLen)
	}
	return d, nil
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.History != nil {
		out.History = append([]StatusEvent(nil), it.History...)
	}
	return out
}

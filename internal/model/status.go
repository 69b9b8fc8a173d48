package model

import "strings"

// Status is one of the fixed, canonically-cased status values.
type Status string

const (
	StatusNew       Status = "New"
	StatusStarted   Status = "Started"
	StatusDeferred  Status = "Deferred"
	StatusCompleted Status = "Completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusNew, StatusStarted, StatusDeferred, StatusCompleted}

// ParseStatus returns the canonical status equal to candidate, ignoring case.
// Anything else, including the empty string, yields a *StatusError.
func ParseStatus(candidate string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(candidate, string(s)) {
			return s, nil
		}
	}
	return "", &StatusError{Value: candidate}
}

// Same reports whether two status strings name the same status.
func (s Status) Same(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// Next returns the status that follows s in display order, wrapping around.
func (s Status) Next() Status {
	for i, v := range Statuses {
		if v.Same(s) {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusNew
}

func (s Status) String() string { return string(s) }

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// statusLabels are the display names used in board CSVs since the first
// version of the tool. Persisted files carry the label, not the enum value.
var statusLabels = map[Status]string{
	StatusOpen:       "未対応",
	StatusInProgress: "対応中",
	StatusClosed:     "クローズ",
}

var labelStatuses = map[string]Status{
	"未対応":  StatusOpen,
	"対応中":  StatusInProgress,
	"クローズ": StatusClosed,
}

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// Label returns the display name written to board files.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Statuses returns all valid statuses in display order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusClosed}
}

// ParseStatus accepts both enum values and the persisted display labels.
// Returns false when the input names no known status.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	if st, ok := labelStatuses[s]; ok {
		return st, true
	}
	st := Status(strings.ToLower(s))
	if st.IsValid() {
		return st, true
	}
	return "", false
}

// Task is one row of the board.
type Task struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Owner       string    `json:"owner"`
	NextAction  string    `json:"next_action"`
	Notes       string    `json:"notes"`
	Source      string    `json:"source"`
}

// NewID mints a task identifier. IDs are uuid4 strings because existing
// board files already hold them in that form.
func NewID() string {
	return uuid.NewString()
}

// Package store holds the task board in memory: an ordered record set with
// filtering, mutation, and close-candidate selection.
//
// The store does no I/O. Callers persist the record set through a
// storage.Backend after each successful mutation, so the store stays
// a plain, explicitly owned value with a single writer.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

var (
	// ErrNotFound reports an id that matches no record.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidValue reports a malformed or out-of-enum field.
	ErrInvalidValue = errors.New("invalid value")
)

type Store struct {
	now   func() time.Time
	tasks []model.Task
	index map[string]int
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock builds a store that reads the current time from now.
// Every mutation stamps updated_at with it.
func NewWithClock(now func() time.Time) *Store {
	return &Store{now: now, index: make(map[string]int)}
}

// Replace swaps in a full record set, e.g. after loading from a backend.
// Insertion order follows the slice. The previous contents are kept when
// the new set is rejected.
func (s *Store) Replace(tasks []model.Task) error {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidValue, i)
		}
		if _, dup := index[t.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidValue, t.ID)
		}
		if !t.Status.IsValid() {
			return fmt.Errorf("%w: unknown status %q on %s", ErrInvalidValue, t.Status, t.ID)
		}
		index[t.ID] = i
	}
	s.tasks = slices.Clone(tasks)
	s.index = index
	return nil
}

func (s *Store) Len() int {
	return len(s.tasks)
}

// All returns a copy of the record set in insertion order.
func (s *Store) All() []model.Task {
	return slices.Clone(s.tasks)
}

func (s *Store) Get(id string) (model.Task, error) {
	i, ok := s.index[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.tasks[i], nil
}

// AddInput carries the caller-supplied fields of a new record. Description
// and Status are required; the rest default to empty.
type AddInput struct {
	Description string
	Status      model.Status
	Owner       string
	NextAction  string
	Notes       string
	Source      string
}

// Add appends a new record with a fresh id and created_at = updated_at = now.
func (s *Store) Add(in AddInput) (model.Task, error) {
	if strings.TrimSpace(in.Description) == "" {
		return model.Task{}, fmt.Errorf("%w: description is required", ErrInvalidValue)
	}
	if !in.Status.IsValid() {
		return model.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidValue, in.Status)
	}

	now := s.now()
	t := model.Task{
		ID:          model.NewID(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Description: in.Description,
		Status:      in.Status,
		Owner:       in.Owner,
		NextAction:  in.NextAction,
		Notes:       in.Notes,
		Source:      in.Source,
	}
	s.index[t.ID] = len(s.tasks)
	s.tasks = append(s.tasks, t)
	return t, nil
}

// Changes is a partial update; nil fields are left untouched.
// ID and CreatedAt cannot be changed.
type Changes struct {
	Description *string
	Status      *model.Status
	Owner       *string
	NextAction  *string
	Notes       *string
	Source      *string
}

// Update applies changes to the matching record and refreshes updated_at,
// even when the change set is empty. Validation happens before any field
// is touched, so a rejected call leaves the record as it was.
func (s *Store) Update(id string, ch Changes) (model.Task, error) {
	i, ok := s.index[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ch.Status != nil && !ch.Status.IsValid() {
		return model.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidValue, *ch.Status)
	}
	if ch.Description != nil && strings.TrimSpace(*ch.Description) == "" {
		return model.Task{}, fmt.Errorf("%w: description is required", ErrInvalidValue)
	}

	t := &s.tasks[i]
	if ch.Description != nil {
		t.Description = *ch.Description
	}
	if ch.Status != nil {
		t.Status = *ch.Status
	}
	if ch.Owner != nil {
		t.Owner = *ch.Owner
	}
	if ch.NextAction != nil {
		t.NextAction = *ch.NextAction
	}
	if ch.Notes != nil {
		t.Notes = *ch.Notes
	}
	if ch.Source != nil {
		t.Source = *ch.Source
	}
	t.UpdatedAt = s.now()
	return *t, nil
}

// Close marks every given task closed and refreshes updated_at.
// All-or-nothing: one unknown id leaves the store untouched.
func (s *Store) Close(ids ...string) ([]model.Task, error) {
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	now := s.now()
	closed := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t := &s.tasks[s.index[id]]
		t.Status = model.StatusClosed
		t.UpdatedAt = now
		closed = append(closed, *t)
	}
	return closed, nil
}

// Delete removes records, preserving the order of the survivors.
// All-or-nothing like Close.
func (s *Store) Delete(ids ...string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		drop[id] = true
	}
	if len(drop) == 0 {
		return nil
	}

	kept := make([]model.Task, 0, len(s.tasks)-len(drop))
	for _, t := range s.tasks {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.index = make(map[string]int, len(kept))
	for i, t := range kept {
		s.index[t.ID] = i
	}
	return nil
}

package store

import (
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

// Filter describes a board view. Zero-valued fields are ignored; the rest
// are combined with AND.
type Filter struct {
	// Status keeps only records with this exact status.
	Status *model.Status
	// Owners keeps records whose owner is any of the given names.
	Owners []string
	// Keyword keeps records containing the text (case-insensitive) in the
	// description, next action, or notes.
	Keyword string
	// UpdatedAfter / UpdatedBefore bound updated_at, inclusive.
	UpdatedAfter  time.Time
	UpdatedBefore time.Time
}

func (f Filter) matches(t model.Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if len(f.Owners) > 0 && !slices.Contains(f.Owners, t.Owner) {
		return false
	}
	if f.Keyword != "" &&
		!containsFold(t.Description, f.Keyword) &&
		!containsFold(t.NextAction, f.Keyword) &&
		!containsFold(t.Notes, f.Keyword) {
		return false
	}
	if !f.UpdatedAfter.IsZero() && t.UpdatedAt.Before(f.UpdatedAfter) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && t.UpdatedAt.After(f.UpdatedBefore) {
		return false
	}
	return true
}

// Filter returns a lazy view of the matching records in insertion order.
// The sequence is restartable: each range re-evaluates against the current
// record set rather than a snapshot.
func (s *Store) Filter(f Filter) iter.Seq[model.Task] {
	return func(yield func(model.Task) bool) {
		for _, t := range s.tasks {
			if !f.matches(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// List materializes Filter into a slice.
func (s *Store) List(f Filter) []model.Task {
	var out []model.Task
	for t := range s.Filter(f) {
		out = append(out, t)
	}
	return out
}

// CountByStatus tallies the whole board for the summary line.
func (s *Store) CountByStatus() map[model.Status]int {
	counts := make(map[model.Status]int, 3)
	for _, t := range s.tasks {
		counts[t.Status]++
	}
	return counts
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

package store

import (
	"slices"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

// CandidateField names a text field the close-candidate rule scans.
type CandidateField string

const (
	FieldDescription CandidateField = "description"
	FieldNextAction  CandidateField = "next_action"
	FieldNotes       CandidateField = "notes"
)

// DefaultStaleDays is the board's long-standing "nobody replied" threshold.
const DefaultStaleDays = 7

// DefaultKeywords mark a task as waiting for a reply.
var DefaultKeywords = []string{"返信待ち", "返信無し", "返信なし", "返信ない", "催促"}

// CandidateRule selects tasks that are probably resolvable: still
// in progress, mentioning a reply-waiting keyword, and untouched for
// StaleDays or more. Which text fields are scanned is policy, not fixed.
type CandidateRule struct {
	Keywords  []string
	StaleDays int
	Fields    []CandidateField
}

// DefaultRule scans description, next action, and notes with the given
// keywords (DefaultKeywords when empty) at the default staleness.
func DefaultRule(keywords []string) CandidateRule {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return CandidateRule{
		Keywords:  keywords,
		StaleDays: DefaultStaleDays,
		Fields:    []CandidateField{FieldDescription, FieldNextAction, FieldNotes},
	}
}

func (r CandidateRule) fields() []CandidateField {
	if len(r.Fields) == 0 {
		return []CandidateField{FieldDescription, FieldNextAction, FieldNotes}
	}
	return r.Fields
}

func (r CandidateRule) staleDays() int {
	if r.StaleDays <= 0 {
		return DefaultStaleDays
	}
	return r.StaleDays
}

func (r CandidateRule) matches(t model.Task, now time.Time) bool {
	if t.Status != model.StatusInProgress {
		return false
	}
	if daysBetween(t.UpdatedAt, now) < r.staleDays() {
		return false
	}
	for _, f := range r.fields() {
		var text string
		switch f {
		case FieldDescription:
			text = t.Description
		case FieldNextAction:
			text = t.NextAction
		case FieldNotes:
			text = t.Notes
		}
		for _, kw := range r.Keywords {
			if kw != "" && containsFold(text, kw) {
				return true
			}
		}
	}
	return false
}

// CloseCandidates returns the matching records ordered by ascending
// updated_at, most stale first. Ties keep insertion order.
func (s *Store) CloseCandidates(rule CandidateRule, now time.Time) []model.Task {
	var out []model.Task
	for _, t := range s.tasks {
		if rule.matches(t, now) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Task) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
	return out
}

// daysBetween counts whole elapsed days; a future timestamp counts as zero.
func daysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Package board glues the core store to its collaborators. Every mutation
// goes through here so the side effects the store deliberately does not own
// happen in one place, in a fixed order: save the snapshot, push the mirror,
// write the audit trail.
package board

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mtakagi/taskboard/internal/audit"
	"github.com/mtakagi/taskboard/internal/export"
	"github.com/mtakagi/taskboard/internal/mirror"
	"github.com/mtakagi/taskboard/internal/model"
	"github.com/mtakagi/taskboard/internal/storage"
	"github.com/mtakagi/taskboard/internal/store"
)

type Options struct {
	// Audit enables the change trail.
	Audit *audit.Log
	// Mirror pushes board files to GitHub after each mutation.
	Mirror          *mirror.GitHub
	MirrorTasksPath string
	MirrorAuditPath string
	// LocalTasksPath is the file whose bytes the mirror uploads; set only
	// when the backend is the CSV file itself.
	LocalTasksPath string
	LocalAuditPath string

	// FixedOwners always appear in owner pickers, on top of owners found
	// on the board.
	FixedOwners []string

	Rule         store.CandidateRule
	SaveWithTime bool
	Logger       *log.Logger
}

type Board struct {
	store   *store.Store
	backend storage.Backend
	opts    Options
	logger  *log.Logger
}

func New(st *store.Store, backend storage.Backend, opts Options) *Board {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	if len(opts.Rule.Keywords) == 0 {
		opts.Rule = store.DefaultRule(opts.Rule.Keywords)
	}
	return &Board{store: st, backend: backend, opts: opts, logger: logger}
}

// Load pulls the persisted snapshot into the store.
func (b *Board) Load() error {
	tasks, err := b.backend.Load()
	if err != nil {
		return err
	}
	return b.store.Replace(tasks)
}

func (b *Board) Tasks(f store.Filter) []model.Task {
	return b.store.List(f)
}

func (b *Board) Get(id string) (model.Task, error) {
	return b.store.Get(id)
}

func (b *Board) Rule() store.CandidateRule {
	return b.opts.Rule
}

// Candidates applies the configured close-candidate rule.
func (b *Board) Candidates(now time.Time) []model.Task {
	return b.store.CloseCandidates(b.opts.Rule, now)
}

// Owners returns the roster for owner pickers: the configured fixed names
// plus every owner present on the board, deduplicated and sorted.
func (b *Board) Owners() []string {
	seen := make(map[string]bool, len(b.opts.FixedOwners))
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, name := range b.opts.FixedOwners {
		add(name)
	}
	for _, t := range b.store.All() {
		add(t.Owner)
	}
	slices.Sort(out)
	return out
}

// Summary is the counts line at the top of every board view.
type Summary struct {
	Total        int                  `json:"total"`
	ByStatus     map[model.Status]int `json:"by_status"`
	WaitingReply int                  `json:"waiting_reply"`
}

func (b *Board) Summary() Summary {
	s := Summary{Total: b.store.Len(), ByStatus: b.store.CountByStatus()}
	for _, t := range b.store.All() {
		for _, kw := range b.opts.Rule.Keywords {
			if kw != "" && (containsFold(t.NextAction, kw) || containsFold(t.Notes, kw)) {
				s.WaitingReply++
				break
			}
		}
	}
	return s
}

// Export renders the filtered view in the given format.
func (b *Board) Export(f store.Filter, format string) ([]byte, error) {
	return export.Export(b.store.List(f), format, b.opts.SaveWithTime)
}

// Add creates a record and runs the post-mutation side effects.
func (b *Board) Add(ctx context.Context, user string, in store.AddInput) (model.Task, error) {
	task, err := b.store.Add(in)
	if err != nil {
		return model.Task{}, err
	}
	if err := b.persist(ctx, user); err != nil {
		return task, err
	}
	b.recordAudit(ctx, user, audit.ActionCreate, task.ID, nil, &task)
	b.logger.WithFields(log.Fields{"id": task.ID, "user": user}).Info("task created")
	return task, nil
}

// Update applies a partial change set and runs the side effects.
func (b *Board) Update(ctx context.Context, user, id string, ch store.Changes) (model.Task, error) {
	before, err := b.store.Get(id)
	if err != nil {
		return model.Task{}, err
	}
	task, err := b.store.Update(id, ch)
	if err != nil {
		return model.Task{}, err
	}
	if err := b.persist(ctx, user); err != nil {
		return task, err
	}
	b.recordAudit(ctx, user, audit.ActionUpdate, id, &before, &task)
	b.logger.WithFields(log.Fields{"id": id, "user": user}).Info("task updated")
	return task, nil
}

// Close marks the given tasks closed; all-or-nothing.
func (b *Board) Close(ctx context.Context, user string, ids ...string) ([]model.Task, error) {
	befores := make(map[string]model.Task, len(ids))
	for _, id := range ids {
		t, err := b.store.Get(id)
		if err != nil {
			return nil, err
		}
		befores[id] = t
	}
	closed, err := b.store.Close(ids...)
	if err != nil {
		return nil, err
	}
	if err := b.persist(ctx, user); err != nil {
		return closed, err
	}
	for _, t := range closed {
		before := befores[t.ID]
		b.recordAudit(ctx, user, audit.ActionClose, t.ID, &before, &t)
	}
	b.logger.WithFields(log.Fields{"count": len(closed), "user": user}).Info("tasks closed")
	return closed, nil
}

// Delete removes the given tasks; all-or-nothing.
func (b *Board) Delete(ctx context.Context, user string, ids ...string) error {
	befores := make(map[string]model.Task, len(ids))
	for _, id := range ids {
		t, err := b.store.Get(id)
		if err != nil {
			return err
		}
		befores[id] = t
	}
	if err := b.store.Delete(ids...); err != nil {
		return err
	}
	if err := b.persist(ctx, user); err != nil {
		return err
	}
	action := audit.ActionDelete
	if len(ids) > 1 {
		action = audit.ActionDeleteBulk
	}
	for _, id := range ids {
		before := befores[id]
		b.recordAudit(ctx, user, action, id, &before, nil)
	}
	b.logger.WithFields(log.Fields{"count": len(ids), "user": user}).Info("tasks deleted")
	return nil
}

// Save writes the current snapshot without mutating it. Saving an empty
// board writes the header row, which is how a fresh board file is created.
func (b *Board) Save(ctx context.Context, user string) error {
	return b.persist(ctx, user)
}

// persist saves the snapshot and, when configured, pushes it to the mirror.
// A mirror failure is returned to the caller: the local copies are already
// written, but the user should reload before trying again.
func (b *Board) persist(ctx context.Context, user string) error {
	if err := b.backend.Save(b.store.All()); err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}
	return b.push(ctx, user, b.opts.MirrorTasksPath, b.opts.LocalTasksPath)
}

func (b *Board) recordAudit(ctx context.Context, user string, action audit.Action, id string, before, after *model.Task) {
	if b.opts.Audit == nil {
		return
	}
	if err := b.opts.Audit.Record(user, action, id, before, after); err != nil {
		b.logger.WithError(err).Warn("audit write failed")
		return
	}
	if err := b.push(ctx, user, b.opts.MirrorAuditPath, b.opts.LocalAuditPath); err != nil {
		b.logger.WithError(err).Warn("audit mirror push failed")
	}
}

func (b *Board) push(ctx context.Context, user, remotePath, localPath string) error {
	if b.opts.Mirror == nil || remotePath == "" || localPath == "" {
		return nil
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s for mirror: %w", localPath, err)
	}
	msg := fmt.Sprintf("Update %s from taskboard (%s)", remotePath, time.Now().Format("2006-01-02 15:04:05"))
	return b.opts.Mirror.Push(ctx, remotePath, content, msg, user)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Package storage persists the full board snapshot.
//
// Backends hold exactly one record set: every Save replaces whatever was stored
// before, mirroring the board's rewrite-on-save model. The store itself
// never touches a backend; callers save after each successful mutation.
package storage

import "github.com/mtakagi/taskboard/internal/model"

// Backend loads and saves the complete ordered record set.
type Backend interface {
	Load() ([]model.Task, error)
	Save(tasks []model.Task) error
}

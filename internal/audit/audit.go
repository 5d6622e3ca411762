// Package audit appends structured change records to a flat file, one CSV
// row per action with JSON images of the record before and after. The file
// is append-only; nothing in the application reads it back except tooling.
package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionClose      Action = "close"
	ActionDelete     Action = "delete"
	ActionDeleteBulk Action = "delete_bulk"
)

var header = []string{"ts", "user", "action", "task_id", "before", "after"}

// Entry is one recorded action. Before/After are nil for creations and
// deletions respectively.
type Entry struct {
	Time   time.Time
	User   string
	Action Action
	TaskID string
	Before *model.Task
	After  *model.Task
}

// Log appends entries to the audit file, creating it with a header row on
// first use.
type Log struct {
	Path  string
	Clock func() time.Time
}

func NewLog(path string) *Log {
	return &Log{Path: path, Clock: time.Now}
}

// Record appends one action.
func (l *Log) Record(user string, action Action, taskID string, before, after *model.Task) error {
	beforeJSON, err := imageJSON(before)
	if err != nil {
		return err
	}
	afterJSON, err := imageJSON(after)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = file.Close() }()

	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek audit log: %w", err)
	}

	w := csv.NewWriter(file)
	if pos == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}

	now := time.Now()
	if l.Clock != nil {
		now = l.Clock()
	}
	row := []string{
		now.Format("2006-01-02 15:04:05"),
		user,
		string(action),
		taskID,
		beforeJSON,
		afterJSON,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return file.Close()
}

// Entries reads the whole file back; used by tests and ad-hoc tooling.
func (l *Log) Entries() ([]Entry, error) {
	file, err := os.Open(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse audit log: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("bad audit timestamp %q: %w", row[0], err)
		}
		e := Entry{Time: ts, User: row[1], Action: Action(row[2]), TaskID: row[3]}
		if e.Before, err = imageFromJSON(row[4]); err != nil {
			return nil, err
		}
		if e.After, err = imageFromJSON(row[5]); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func imageJSON(t *model.Task) (string, error) {
	if t == nil {
		return "{}", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit image: %w", err)
	}
	return string(b), nil
}

func imageFromJSON(s string) (*model.Task, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var t model.Task
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("failed to decode audit image: %w", err)
	}
	return &t, nil
}
